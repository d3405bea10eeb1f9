// Copyright 2024 The vkwave-go Authors. All rights reserved.

package pipeline

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

func TestSceneRecipeNoMSAA(t *testing.T) {
	att, sub := SceneRecipe(vk.FormatR16g16b16a16Sfloat, vk.FormatD32Sfloat, vk.SampleCount1Bit)
	require.Len(t, att, 2)
	require.Equal(t, vk.FormatR16g16b16a16Sfloat, att[0].Format)
	require.Equal(t, SStore, att[0].Store)
	require.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, att[0].FinalLayout)
	require.Equal(t, vk.FormatD32Sfloat, att[1].Format)
	require.Len(t, sub, 1)
	require.Equal(t, []int{0}, sub[0].Color)
	require.Equal(t, 1, sub[0].DS)
	require.Empty(t, sub[0].Resolve)
}

func TestSceneRecipeWithMSAA(t *testing.T) {
	att, sub := SceneRecipe(vk.FormatR16g16b16a16Sfloat, vk.FormatD32Sfloat, vk.SampleCount4Bit)
	require.Len(t, att, 3)
	// The MSAA color attachment itself is never read back directly.
	require.Equal(t, SDontCare, att[0].Store)
	require.Equal(t, vk.SampleCount1Bit, att[2].Samples)
	require.Equal(t, SStore, att[2].Store)
	require.Equal(t, []int{2}, sub[0].Resolve)
}

func TestCompositeRecipe(t *testing.T) {
	att, sub := CompositeRecipe(vk.FormatB8g8r8a8Srgb)
	require.Len(t, att, 1)
	require.Equal(t, LClear, att[0].Load)
	require.Equal(t, vk.ImageLayoutPresentSrc, att[0].FinalLayout)
	require.Equal(t, -1, sub[0].DS)
}

func TestOverlayRecipe(t *testing.T) {
	att, _ := OverlayRecipe(vk.FormatB8g8r8a8Srgb)
	require.Len(t, att, 1)
	require.Equal(t, LLoad, att[0].Load)
	require.Equal(t, vk.ImageLayoutPresentSrc, att[0].InitialLayout)
	require.Equal(t, vk.ImageLayoutPresentSrc, att[0].FinalLayout)
}
