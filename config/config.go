// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Package config loads vkwave's TOML configuration file and applies CLI
// overrides on top of it. The core only reads back the handful of keys
// that influence its own setup (present mode, max frames, debug flags);
// everything else (window, platform, scene asset paths) is passed through
// unchanged for the external collaborators that own those concerns.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Vulkan holds device-selection and swapchain hints.
type Vulkan struct {
	PreferredGPU    string `toml:"preferred_gpu"`
	PresentMode     string `toml:"present_mode"`
	SwapchainImages uint32 `toml:"swapchain_images"`
}

// Window holds external window-creation parameters.
type Window struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	Mode   string `toml:"mode"`
}

// Platform holds windowing-backend hints.
type Platform struct {
	UseX11 bool `toml:"use_x11"`
}

// Scene holds asset paths, owned by the external scene loader.
type Scene struct {
	ModelPath  string   `toml:"model_path"`
	ModelPaths []string `toml:"model_paths"`
	HDRPath    string   `toml:"hdr_path"`
	HDRPaths   []string `toml:"hdr_paths"`
}

// Debug holds developer-facing switches.
type Debug struct {
	MaxFrames      uint64 `toml:"max_frames"`
	ShaderDebug    bool   `toml:"shader_debug"`
	ShaderOptimize bool   `toml:"shader_optimize"`
	LogLevel       string `toml:"log_level"`
}

// Config is the top-level, fully-merged configuration.
type Config struct {
	Vulkan   Vulkan   `toml:"vulkan"`
	Window   Window   `toml:"window"`
	Platform Platform `toml:"platform"`
	Scene    Scene    `toml:"scene"`
	Debug    Debug    `toml:"debug"`
}

// Default returns the config's built-in defaults, applied before a file
// or CLI overrides anything.
func Default() Config {
	return Config{
		Vulkan: Vulkan{PresentMode: "mailbox"},
		Window: Window{Title: "vkwave", Width: 800, Height: 600, Mode: "windowed"},
	}
}

// Load reads and parses a TOML config file at path, starting from
// Default() so unset keys keep their defaults. A missing file is not an
// error: it returns Default() unchanged, since every key is optional.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}
