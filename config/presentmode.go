// Copyright 2024 The vkwave-go Authors. All rights reserved.

package config

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// ParsePresentMode maps a config/CLI present-mode string to its Vulkan
// enum value.
func ParsePresentMode(mode string) (vk.PresentModeKHR, error) {
	switch mode {
	case "immediate":
		return vk.PresentModeImmediate, nil
	case "mailbox":
		return vk.PresentModeMailbox, nil
	case "fifo":
		return vk.PresentModeFifo, nil
	case "fifo_relaxed":
		return vk.PresentModeFifoRelaxed, nil
	default:
		return 0, fmt.Errorf("config: unknown present mode %q", mode)
	}
}

// WindowMode is the parsed form of the window.mode config key.
type WindowMode int

const (
	WindowModeWindowed WindowMode = iota
	WindowModeFullscreen
	WindowModeWindowedFullscreen
)

// ParseWindowMode maps a config window.mode string to its enum value,
// defaulting to windowed for anything unrecognized (matching the
// original's permissive fallback).
func ParseWindowMode(mode string) WindowMode {
	switch mode {
	case "fullscreen":
		return WindowModeFullscreen
	case "windowed_fullscreen":
		return WindowModeWindowedFullscreen
	default:
		return WindowModeWindowed
	}
}
