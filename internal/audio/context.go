package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/spectral-canvas/internal/analysis"
)

// State is the processing state of a Context.
type State string

const (
	StateRunning   State = "running"
	StateSuspended State = "suspended"
	StateClosed    State = "closed"
)

// Context is the shared audio-processing graph. One Context lives for the
// whole process; sessions suspend it when they end and resume it when they
// start, instead of building a new one each time.
type Context struct {
	mu    sync.Mutex
	state State
	log   zerolog.Logger

	sources map[*Source]struct{}
}

func NewContext(log zerolog.Logger) *Context {
	return &Context{
		state:   StateRunning,
		log:     log,
		sources: make(map[*Source]struct{}),
	}
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrContextClosed
	}
	if c.state != StateRunning {
		c.log.Debug().Msg("Resuming audio context")
	}
	c.state = StateRunning
	return nil
}

// Suspend pauses processing. Connected sources keep reading but their
// samples are dropped until Resume.
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrContextClosed
	}
	if c.state != StateSuspended {
		c.log.Debug().Msg("Suspending audio context")
	}
	c.state = StateSuspended
	return nil
}

// Close disconnects every source. A closed context cannot be resumed.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	sources := make([]*Source, 0, len(c.sources))
	for s := range c.sources {
		sources = append(sources, s)
	}
	c.mu.Unlock()

	for _, s := range sources {
		s.Disconnect()
	}
	return nil
}

func (c *Context) running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

// CreateAnalyser builds a frequency-analysis node.
func (c *Context) CreateAnalyser(opts analysis.Options) (*analysis.Analyser, error) {
	if c.State() == StateClosed {
		return nil, ErrContextClosed
	}
	return analysis.New(opts)
}

// CreateStreamSource wraps a capture stream as a graph source.
func (c *Context) CreateStreamSource(s Stream) (*Source, error) {
	if c.State() == StateClosed {
		return nil, ErrContextClosed
	}
	return &Source{ctx: c, stream: s}, nil
}

// Source feeds a capture stream into an analyser while connected.
type Source struct {
	ctx    *Context
	stream Stream

	mu     sync.Mutex
	dest   *analysis.Analyser
	cancel context.CancelFunc
}

// Connect starts pumping samples into a. A source feeds one analyser; a
// second Connect replaces the first.
func (s *Source) Connect(a *analysis.Analyser) error {
	if s.ctx.State() == StateClosed {
		return ErrContextClosed
	}
	if a == nil {
		return fmt.Errorf("connect: nil analyser")
	}

	s.Disconnect()

	pumpCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.dest = a
	s.cancel = cancel
	s.mu.Unlock()

	s.ctx.mu.Lock()
	s.ctx.sources[s] = struct{}{}
	s.ctx.mu.Unlock()

	go s.pump(pumpCtx)
	return nil
}

// Disconnect stops feeding the analyser. It does not wait for an in-flight
// read to return; no sample reaches the analyser after it returns.
func (s *Source) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.dest = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.ctx.mu.Lock()
	delete(s.ctx.sources, s)
	s.ctx.mu.Unlock()
}

// Connected reports whether the source is feeding an analyser.
func (s *Source) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dest != nil
}

func (s *Source) pump(ctx context.Context) {
	for {
		samples, err := s.stream.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.ctx.log.Debug().Err(err).Msg("Capture stream ended")
			}
			return
		}

		if !s.ctx.running() {
			continue
		}

		s.mu.Lock()
		if ctx.Err() == nil && s.dest != nil {
			s.dest.Write(samples)
		}
		s.mu.Unlock()
	}
}
