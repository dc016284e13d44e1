package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petems/spectral-canvas/internal/app"
	"github.com/petems/spectral-canvas/internal/audio"
	"github.com/petems/spectral-canvas/internal/config"
	"github.com/petems/spectral-canvas/internal/frame"
	"github.com/petems/spectral-canvas/internal/notify"
	"github.com/petems/spectral-canvas/internal/render"
)

// runSnapshot analyses the selected device for the configured duration,
// drawing into an offscreen canvas, and writes the last frame as PNG.
func runSnapshot(ctx context.Context, cfg *config.Config, backend audio.Backend, audioCtx *audio.Context, frames *frame.Ticker, log zerolog.Logger) error {
	canvas := render.NewRaster(cfg.Snapshot.Width, cfg.Snapshot.Height)

	application := app.New(app.Config{
		Backend:  backend,
		Context:  audioCtx,
		Frames:   frames,
		Canvas:   canvas,
		Notifier: notify.NewLog(log),
		Config:   cfg,
		Logger:   log,
	})
	if err := application.Load(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Snapshot.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return frames.Run(gctx)
	})

	if err := application.Start(ctx); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}

	err := g.Wait()
	if serr := application.Shutdown(context.Background()); serr != nil {
		err = errors.Join(err, serr)
	}
	if err != nil {
		return err
	}

	if canvas.Frames() == 0 {
		return errors.New("no frame was rendered")
	}
	if err := canvas.SavePNG(cfg.Snapshot.Path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	log.Info().Str("path", cfg.Snapshot.Path).Int("frames", canvas.Frames()).Msg("Snapshot written")
	return nil
}
