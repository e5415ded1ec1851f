package api

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/matt-g-everett/frametx/config"
	"github.com/matt-g-everett/frametx/stream"
)

//go:embed static/index.html
var landingPage []byte

// FrameSource is the receiving end of the frame handoff.
type FrameSource interface {
	Receive(ctx context.Context) (*stream.Frame, error)
}

// Recorder receives request and delivery events.
type Recorder interface {
	Request(path string, status int)
	FrameServed(wait time.Duration, w *stream.WireFrame)
}

// Publisher forwards delivered frame metadata elsewhere. It must not block.
type Publisher interface {
	Delivered(w *stream.WireFrame, wait time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Request(string, int)                          {}
func (nopRecorder) FrameServed(time.Duration, *stream.WireFrame) {}

type nopPublisher struct{}

func (nopPublisher) Delivered(*stream.WireFrame, time.Duration) {}

// Option customises a Server.
type Option func(*Server)

// WithClock replaces the clock used for /now and send timestamps.
func WithClock(c stream.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLandingPage replaces the embedded document served at /.
func WithLandingPage(page []byte) Option {
	return func(s *Server) { s.landing = page }
}

// WithWaitTimeout bounds how long /frames waits for a frame. Zero waits forever.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Server) { s.waitTimeout = d }
}

// WithRecorder reports requests and deliveries to r.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithPublisher forwards deliveries to p.
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithLogger replaces the component logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) { s.logger = l }
}

// Server answers requests for the landing page, the current time and the
// next frame. It keeps no state besides the frame source.
type Server struct {
	frames      FrameSource
	clock       stream.Clock
	landing     []byte
	waitTimeout time.Duration
	recorder    Recorder
	publisher   Publisher
	logger      *logrus.Entry
}

// NewServer creates a Server reading frames from source.
func NewServer(source FrameSource, opts ...Option) *Server {
	s := &Server{
		frames:    source,
		clock:     stream.SystemClock{},
		landing:   landingPage,
		recorder:  nopRecorder{},
		publisher: nopPublisher{},
		logger:    config.Logger("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router for all paths. Unknown paths get 404 with an
// empty body regardless of method.
func (s *Server) Handler() http.Handler {
	// Paths are matched as sent; mux would otherwise redirect //now to /now.
	r := mux.NewRouter().SkipClean(true)
	r.HandleFunc("/", s.handleIndex)
	r.HandleFunc("/now", s.handleNow)
	r.HandleFunc("/frames", s.handleFrames)
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.Use(s.requestIDMiddleware, s.loggingMiddleware)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.write(w, r, http.StatusOK, s.landing)
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	body, err := stream.EncodeTimestamp(s.clock.Now())
	if err != nil {
		requestLogger(r, s.logger).WithError(err).Error("Failed to encode time")
		s.write(w, r, http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	s.write(w, r, http.StatusOK, body)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, s.logger)
	waitStart := s.clock.Now()

	ctx := r.Context()
	if s.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.waitTimeout)
		defer cancel()
	}

	frame, err := s.frames.Receive(ctx)
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrDisconnected):
		logger.Warn("Frame producer has stopped")
		s.write(w, r, http.StatusInternalServerError, nil)
		return
	case errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil:
		logger.WithField("timeout", s.waitTimeout).Warn("Timed out waiting for a frame")
		s.write(w, r, http.StatusServiceUnavailable, nil)
		return
	default:
		logger.WithError(err).Debug("Requester went away while waiting for a frame")
		return
	}

	sent := s.clock.Now()
	wire := stream.NewWireFrame(frame, sent)
	body, err := wire.MarshalBinary()
	if err != nil {
		logger.WithError(err).Error("Failed to encode frame")
		s.write(w, r, http.StatusInternalServerError, nil)
		return
	}

	wait := sent.Sub(waitStart)
	s.recorder.FrameServed(wait, wire)
	s.publisher.Delivered(wire, wait)

	w.Header().Set("Content-Type", "application/msgpack")
	s.write(w, r, http.StatusOK, body)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, http.StatusNotFound, nil)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	s.recorder.Request(routeName(r), status)
	w.WriteHeader(status)
	if len(body) == 0 {
		return
	}
	if _, err := w.Write(body); err != nil {
		requestLogger(r, s.logger).WithError(err).Debug("Failed to write response")
	}
}

// routeName keeps metric labels bounded to the known paths.
func routeName(r *http.Request) string {
	switch r.URL.Path {
	case "/", "/now", "/frames":
		return r.URL.Path
	default:
		return "other"
	}
}
