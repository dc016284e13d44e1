package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/petems/spectral-canvas/internal/app"
	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/config"
	"github.com/petems/spectral-canvas/internal/frame"
	"github.com/petems/spectral-canvas/internal/logging"
	"github.com/petems/spectral-canvas/internal/notify"
	"github.com/petems/spectral-canvas/internal/render"
	"github.com/petems/spectral-canvas/internal/terminal"
	"github.com/petems/spectral-canvas/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	fs := config.Flags()
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log := logging.New()
		log.Fatal().Err(err).Msg("Invalid arguments")
	}
	if *showVersion {
		fmt.Printf("spectral-canvas %s (%s)\n", Version, Commit)
		return
	}

	// Load config from XDG/Library/AppData, then env and flags
	cfg, err := config.Load(fs)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// The terminal view owns stderr's screen, so only headless runs log to
	// the console.
	headless := cfg.Snapshot.Path != ""
	log := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Console: headless})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize audio capture
	backend, err := audio.New(cfg.Audio, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer backend.Close()

	audioCtx := audio.NewContext(log)
	defer audioCtx.Close()

	frames := frame.NewTicker(cfg.Render.FPS)

	if headless {
		if err := runSnapshot(ctx, cfg, backend, audioCtx, frames, log); err != nil {
			log.Error().Err(err).Msg("Snapshot failed")
			os.Exit(1)
		}
		return
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create terminal screen")
	}
	if err := screen.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize terminal")
	}
	defer screen.Fini()

	view := terminal.NewView(screen, render.New(), log)

	application := app.New(app.Config{
		Backend:  backend,
		Context:  audioCtx,
		Frames:   frames,
		Canvas:   view.Canvas(),
		Notifier: notify.Multi{notify.NewLog(log), view},
		Config:   cfg,
		Logger:   log,
	})
	view.SetController(application)

	var trayUI *tray.UI
	if cfg.Tray {
		trayUI = tray.New(application, Version, Commit, stop, log)
		application.SetStatusUpdater(trayUI)
	}

	// A failure here has been shown to the user; start stays disabled.
	if err := application.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("No audio inputs available")
	}

	log.Info().Str("version", Version).Msg("Spectral canvas starting...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return frames.Run(gctx)
	})
	g.Go(func() error {
		// Quitting the view ends the process.
		defer stop()
		return view.Run(gctx)
	})

	// Tray UI - MUST run on main thread
	if trayUI != nil {
		if err := trayUI.Run(gctx); err != nil {
			log.Error().Err(err).Msg("Tray error")
		}
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Run error")
	}

	log.Info().Msg("Shutting down...")
	if err := application.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
