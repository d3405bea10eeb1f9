// Copyright 2024 The vkwave-go Authors. All rights reserved.

package config

import (
	"flag"
	"fmt"
	"io"
)

// CLI holds the parsed command-line overrides. Apply copies only the
// flags that were actually given on the command line (an explicitly
// passed zero value included); for any flag not given, it leaves the
// corresponding config key untouched.
type CLI struct {
	ConfigPath  string
	MaxFrames   uint64
	PresentMode string
	Model       string
	HDR         string

	maxFramesSet   bool
	presentModeSet bool
	modelSet       bool
	hdrSet         bool
}

// ParseCLI parses args (excluding the program name) against vkwave's flag
// surface. A request for --help or --complete returns (nil, flag.ErrHelp)
// and the caller should print usage and exit 0; no third-party CLI
// library is used here (see DESIGN.md — no grounded lightweight CLI
// dependency was available).
func ParseCLI(args []string, out io.Writer) (*CLI, error) {
	fs := flag.NewFlagSet("vkwave", flag.ContinueOnError)
	fs.SetOutput(out)

	c := &CLI{}
	var configPath string
	fs.StringVar(&configPath, "config", "vkwave.toml", "path to config file")
	fs.StringVar(&configPath, "c", "vkwave.toml", "path to config file (shorthand)")
	fs.Uint64Var(&c.MaxFrames, "max-frames", 0, "exit after N frames (0 = unlimited)")
	fs.StringVar(&c.PresentMode, "present-mode", "", "immediate|mailbox|fifo|fifo_relaxed")
	fs.StringVar(&c.Model, "model", "", "path to glTF model (.gltf/.glb)")
	fs.StringVar(&c.HDR, "hdr", "", "path to HDR environment map")
	complete := fs.Bool("complete", false, "print shell completion and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *complete {
		fmt.Fprintln(out, "--config --max-frames --present-mode --model --hdr --help --complete")
		return nil, flag.ErrHelp
	}

	c.ConfigPath = configPath
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-frames":
			c.maxFramesSet = true
		case "present-mode":
			c.presentModeSet = true
		case "model":
			c.modelSet = true
		case "hdr":
			c.hdrSet = true
		}
	})
	return c, nil
}

// Apply overlays the CLI flags that were actually set onto cfg, matching
// the original's "load TOML, then apply CLI overrides" order.
func (c *CLI) Apply(cfg *Config) {
	if c == nil {
		return
	}
	if c.maxFramesSet {
		cfg.Debug.MaxFrames = c.MaxFrames
	}
	if c.presentModeSet {
		cfg.Vulkan.PresentMode = c.PresentMode
	}
	if c.modelSet {
		cfg.Scene.ModelPath = c.Model
	}
	if c.hdrSet {
		cfg.Scene.HDRPath = c.HDR
	}
}
