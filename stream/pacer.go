package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matt-g-everett/frametx/config"
)

// Stats receives pacing events. Implementations must be safe to call from the
// Pacer goroutine while being read elsewhere.
type Stats interface {
	FrameRendered(took time.Duration, late bool)
	FrameHandedOff()
	FrameDropped()
}

type nopStats struct{}

func (nopStats) FrameRendered(time.Duration, bool) {}
func (nopStats) FrameHandedOff()                   {}
func (nopStats) FrameDropped()                     {}

// PacerOption customises a Pacer.
type PacerOption func(*Pacer)

// WithClock replaces the system clock.
func WithClock(clock Clock) PacerOption {
	return func(p *Pacer) { p.clock = clock }
}

// WithStats reports pacing events to s.
func WithStats(s Stats) PacerOption {
	return func(p *Pacer) { p.stats = s }
}

// WithLogger replaces the component logger.
func WithLogger(l *logrus.Entry) PacerOption {
	return func(p *Pacer) { p.logger = l }
}

// Pacer renders a frame every interval on its own goroutine and offers each
// one to the Handoff. Frames nobody is waiting for are dropped; the cadence
// never changes to suit the consumer.
type Pacer struct {
	renderer   Renderer
	handoff    *Handoff
	clock      Clock
	intervalMs int64
	bufSize    int
	stats      Stats
	logger     *logrus.Entry

	start sync.Once
	done  chan struct{}
}

// NewPacer creates a Pacer. It does nothing until Start is called.
func NewPacer(cfg config.Frame, renderer Renderer, handoff *Handoff, opts ...PacerOption) *Pacer {
	p := &Pacer{
		renderer:   renderer,
		handoff:    handoff,
		clock:      SystemClock{},
		intervalMs: cfg.IntervalMs,
		bufSize:    cfg.BufferSize(),
		stats:      nopStats{},
		logger:     config.Logger("pacer"),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the pacing goroutine. Calls after the first do nothing.
func (p *Pacer) Start() {
	p.start.Do(func() { go p.run() })
}

// Done is closed once the pacing goroutine has exited.
func (p *Pacer) Done() <-chan struct{} {
	return p.done
}

func (p *Pacer) run() {
	defer close(p.done)
	defer p.handoff.CloseSender()

	buf := make([]byte, p.bufSize)
	start := p.clock.Now().UnixMilli()
	next := start + p.intervalMs

	p.logger.WithFields(logrus.Fields{
		"start":       start,
		"interval_ms": p.intervalMs,
	}).Info("Pacer started")

	for {
		began := p.clock.Now()
		frame, err := p.render(next, buf)
		if err != nil {
			p.logger.WithError(err).WithField("timestamp", next).Error("Renderer failed, pacer stopping")
			return
		}

		// Sleep to the intended time; when behind, send now and keep the
		// nominal timestamps rather than skipping ahead.
		now := p.clock.Now()
		sleep := time.UnixMilli(next).Sub(now)
		p.stats.FrameRendered(now.Sub(began), sleep <= 0)
		if sleep > 0 {
			p.clock.Sleep(sleep)
		} else {
			p.logger.WithFields(logrus.Fields{
				"timestamp": next,
				"behind":    -sleep,
			}).Debug("Frame late")
		}

		switch err := p.handoff.TrySend(frame); {
		case err == nil:
			p.stats.FrameHandedOff()
		case errors.Is(err, ErrDropped):
			p.stats.FrameDropped()
			p.logger.WithField("timestamp", next).Trace("No receiver waiting, frame dropped")
		case errors.Is(err, ErrDisconnected):
			p.logger.WithField("timestamp", next).Info("Receiver closed, pacer stopping")
			return
		}

		next += p.intervalMs
	}
}

// render keeps a failing Renderer from taking the process down. The caller
// stops pacing, which closes the sender so waiting requests are answered.
func (p *Pacer) render(timestampMs int64, buf []byte) (frame *Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render %d: %v", timestampMs, r)
		}
	}()

	frame = p.renderer.Render(timestampMs, buf)
	if frame == nil {
		return nil, fmt.Errorf("render %d: no frame", timestampMs)
	}
	return frame, nil
}
