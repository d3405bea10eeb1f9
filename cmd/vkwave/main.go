// Copyright 2024 The vkwave-go Authors. All rights reserved.

// Command vkwave is a minimal demo binary wiring the render-graph core
// (packages reflect/pipeline/group/graph/screenshot) to a window, a
// camera and a config file. Physical-device selection, logical-device
// and swapchain creation are an external collaborator's responsibility
// and are not implemented by this module; newBackend in backend.go is
// the seam a platform integration layer plugs into.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/vkwave-go/vkwave/config"
	"github.com/vkwave-go/vkwave/screenshot"
	"github.com/vkwave-go/vkwave/wsi"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, errOut *os.File) int {
	cli, err := config.ParseCLI(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, err)
		return 1
	}

	cfgPath := "vkwave.toml"
	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(errOut, "vkwave: loading %s: %v\n", cfgPath, err)
		return 1
	}
	cli.Apply(&cfg)

	logger := newLogger(cfg.Debug.LogLevel)

	win, err := wsi.NewWindow(int(cfg.Window.Width), int(cfg.Window.Height), cfg.Window.Title)
	if err != nil {
		logger.Error("creating window", "error", err)
		return 1
	}
	defer win.Close()
	if err := win.Map(); err != nil {
		logger.Error("mapping window", "error", err)
		return 1
	}

	b, err := newBackend(cfg, win)
	if err != nil {
		logger.Error("initializing graphics backend", "error", err)
		return 1
	}
	defer b.Close()

	d, err := newDemo(b, cfg, win, logger)
	if err != nil {
		logger.Error("building render graph", "error", err)
		return 1
	}
	defer d.Close()
	defer d.rg.Drain()

	wsi.SetKeyboardHandler(screenshotOnF12{d.shots, win})

	var frames uint64
	for {
		wsi.Dispatch()
		d.updateFrame()

		ok, err := d.rg.RenderFrame()
		if err != nil {
			logger.Error("render frame", "error", err)
			return 1
		}
		if !ok {
			if err := d.rg.Resize(b.swapchain, b.offscreenViews(), b.presentViews()); err != nil {
				logger.Error("resizing swapchain", "error", err)
				return 1
			}
		}

		frames++
		if cfg.Debug.MaxFrames > 0 && frames >= cfg.Debug.MaxFrames {
			break
		}
	}

	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// screenshotOnF12 requests a capture on F12, a common screenshot hotkey
// convention.
type screenshotOnF12 struct {
	shots *screenshot.Capture
	win   wsi.Window
}

func (h screenshotOnF12) KeyboardIn(win wsi.Window)  {}
func (h screenshotOnF12) KeyboardOut(win wsi.Window) {}

func (h screenshotOnF12) KeyboardKey(key wsi.Key, pressed bool, modMask wsi.Modifier) {
	if pressed && key == wsi.KeyF12 {
		h.shots.RequestCapture(h.win.Width(), h.win.Height())
	}
}
