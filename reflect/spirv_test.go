package reflect

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"
)

// inst encodes one SPIR-V instruction: a (wordCount<<16|opcode) header word
// followed by its operand words.
func inst(opcode uint32, ops ...uint32) []uint32 {
	out := make([]uint32, 0, len(ops)+1)
	out = append(out, encodeWord(uint32(len(ops)+1), opcode))
	out = append(out, ops...)
	return out
}

func header(bound uint32) []uint32 {
	return []uint32{spirvMagic, 0x00010000, 0, bound, 0}
}

// literalWords packs s the way SPIR-V OpName does: 4 bytes per word,
// little-endian, NUL-terminated, with trailing bytes of the final word
// zero-padded.
func literalWords(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return words
}

// nameInst builds an OpName instruction naming target.
func nameInst(target uint32, name string) []uint32 {
	ops := append([]uint32{target}, literalWords(name)...)
	return inst(opName, ops...)
}

func flatten(chunks ...[]uint32) []uint32 {
	var out []uint32
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// buildUBOModule returns a module declaring a single 64-byte uniform block
// (four vec4 members) at the given (set, binding).
func buildUBOModule(set, binding uint32) []uint32 {
	// ids: 1=float, 2=vec4, 3=struct, 4=ptr, 5=var
	const (
		idFloat  = 1
		idVec4   = 2
		idStruct = 3
		idPtr    = 4
		idVar    = 5
	)
	return flatten(
		header(6),
		inst(opTypeFloat, idFloat, 32),
		inst(opTypeVector, idVec4, idFloat, 4),
		inst(opTypeStruct, idStruct, idVec4, idVec4, idVec4, idVec4),
		inst(opMemberDecorate, idStruct, 0, decorationOffset, 0),
		inst(opMemberDecorate, idStruct, 1, decorationOffset, 16),
		inst(opMemberDecorate, idStruct, 2, decorationOffset, 32),
		inst(opMemberDecorate, idStruct, 3, decorationOffset, 48),
		inst(opTypePointer, idPtr, storageClassUniform, idStruct),
		inst(opVariable, idPtr, idVar, storageClassUniform),
		inst(opDecorate, idVar, decorationDescriptorSet, set),
		inst(opDecorate, idVar, decorationBinding, binding),
	)
}

// buildPushConstantModule returns a module declaring a single push-constant
// block of exactly sizeBytes, via a float array with ArrayStride 4.
func buildPushConstantModule(sizeBytes int) []uint32 {
	const (
		idFloat  = 1
		idUint   = 2
		idLen    = 3
		idArr    = 4
		idStruct = 5
		idPtr    = 6
		idVar    = 7
	)
	n := uint32(sizeBytes / 4)
	return flatten(
		header(8),
		inst(opTypeFloat, idFloat, 32),
		inst(opTypeInt, idUint, 32, 0),
		inst(opConstant, idUint, idLen, n),
		inst(opTypeArray, idArr, idFloat, idLen),
		inst(opDecorate, idArr, decorationArrayStride, 4),
		inst(opTypeStruct, idStruct, idArr),
		inst(opMemberDecorate, idStruct, 0, decorationOffset, 0),
		inst(opTypePointer, idPtr, storageClassPushConstant, idStruct),
		inst(opVariable, idPtr, idVar, storageClassPushConstant),
	)
}

func TestReflectUBO64Bytes(t *testing.T) {
	code := buildUBOModule(0, 0)
	r, err := Reflect([]StageCode{{Code: code, Stage: vk.ShaderStageFragmentBit}}, true)
	require.NoError(t, err)
	require.Len(t, r.Sets, 1)
	require.Len(t, r.Sets[0].Bindings, 1)
	b := r.Sets[0].Bindings[0]
	require.Equal(t, 0, b.Index)
	require.Equal(t, 64, b.BlockSize)
	require.Equal(t, vk.DescriptorTypeUniformBuffer, b.Type)
	require.NoError(t, r.ValidateUBOSize(0, 0, 64))
	require.Error(t, r.ValidateUBOSize(0, 0, 63))
}

func TestReflectPushConstantMergedAcrossStages(t *testing.T) {
	vertCode := buildPushConstantModule(108)
	fragCode := buildPushConstantModule(108)
	r, err := Reflect([]StageCode{
		{Code: vertCode, Stage: vk.ShaderStageVertexBit},
		{Code: fragCode, Stage: vk.ShaderStageFragmentBit},
	}, true)
	require.NoError(t, err)
	require.Len(t, r.PushConstants, 1)
	pc := r.PushConstants[0]
	require.Equal(t, 0, pc.Offset)
	require.Equal(t, 108, pc.Size)
	require.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit), pc.StageMask)

	require.NoError(t, r.ValidatePushConstantSize(108))
	require.Error(t, r.ValidatePushConstantSize(107))
}

func TestReflectMismatchedBindingIsError(t *testing.T) {
	a := buildUBOModule(0, 0)
	// Same (set,binding) but a 4-byte block instead of 64: should conflict.
	b := flatten(
		header(4),
		inst(opTypeFloat, 1, 32),
		inst(opTypeStruct, 2, 1),
		inst(opMemberDecorate, 2, 0, decorationOffset, 0),
		inst(opTypePointer, 3, storageClassUniform, 2),
		inst(opVariable, 3, 4, storageClassUniform),
		inst(opDecorate, 4, decorationDescriptorSet, 0),
		inst(opDecorate, 4, decorationBinding, 0),
	)
	_, err := Reflect([]StageCode{
		{Code: a, Stage: vk.ShaderStageVertexBit},
		{Code: b, Stage: vk.ShaderStageFragmentBit},
	}, true)
	require.Error(t, err)
}

func TestReflectUBONamed(t *testing.T) {
	const (
		idFloat  = 1
		idVec4   = 2
		idStruct = 3
		idPtr    = 4
		idVar    = 5
	)
	code := flatten(
		header(6),
		inst(opTypeFloat, idFloat, 32),
		inst(opTypeVector, idVec4, idFloat, 4),
		inst(opTypeStruct, idStruct, idVec4, idVec4, idVec4, idVec4),
		inst(opMemberDecorate, idStruct, 0, decorationOffset, 0),
		inst(opMemberDecorate, idStruct, 1, decorationOffset, 16),
		inst(opMemberDecorate, idStruct, 2, decorationOffset, 32),
		inst(opMemberDecorate, idStruct, 3, decorationOffset, 48),
		inst(opTypePointer, idPtr, storageClassUniform, idStruct),
		inst(opVariable, idPtr, idVar, storageClassUniform),
		inst(opDecorate, idVar, decorationDescriptorSet, 0),
		inst(opDecorate, idVar, decorationBinding, 0),
		nameInst(idVar, "sceneUBO"),
	)
	r, err := Reflect([]StageCode{{Code: code, Stage: vk.ShaderStageFragmentBit}}, true)
	require.NoError(t, err)
	require.Len(t, r.Sets[0].Bindings, 1)
	b := r.Sets[0].Bindings[0]
	require.Equal(t, "sceneUBO", b.Name)
	require.Equal(t, 1, b.Count)
}

// buildSampledImageArrayModule returns a module declaring an array of
// combined image samplers bound at (set, binding), named name.
func buildSampledImageArrayModule(set, binding uint32, length uint32, name string) []uint32 {
	const (
		idSampledImg = 1
		idUint       = 2
		idLen        = 3
		idArr        = 4
		idPtr        = 5
		idVar        = 6
	)
	return flatten(
		header(7),
		inst(opTypeSampledImg, idSampledImg),
		inst(opTypeInt, idUint, 32, 0),
		inst(opConstant, idUint, idLen, length),
		inst(opTypeArray, idArr, idSampledImg, idLen),
		inst(opTypePointer, idPtr, storageClassUniformConstant, idArr),
		inst(opVariable, idPtr, idVar, storageClassUniformConstant),
		inst(opDecorate, idVar, decorationDescriptorSet, set),
		inst(opDecorate, idVar, decorationBinding, binding),
		nameInst(idVar, name),
	)
}

func TestReflectSampledImageArrayCountAndName(t *testing.T) {
	code := buildSampledImageArrayModule(1, 2, 4, "textures")
	r, err := Reflect([]StageCode{{Code: code, Stage: vk.ShaderStageFragmentBit}}, true)
	require.NoError(t, err)
	require.Len(t, r.Sets, 1)
	require.Len(t, r.Sets[0].Bindings, 1)
	b := r.Sets[0].Bindings[0]
	require.Equal(t, 2, b.Index)
	require.Equal(t, 4, b.Count)
	require.Equal(t, "textures", b.Name)
	require.Equal(t, vk.DescriptorTypeCombinedImageSampler, b.Type)
}

func TestValidateNoOpWhenDebugOff(t *testing.T) {
	code := buildPushConstantModule(108)
	r, err := Reflect([]StageCode{{Code: code, Stage: vk.ShaderStageVertexBit}}, false)
	require.NoError(t, err)
	require.NoError(t, r.ValidatePushConstantSize(1))
	require.NoError(t, r.ValidateUBOSize(9, 9, 9))
}
