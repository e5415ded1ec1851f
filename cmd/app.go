package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/matt-g-everett/frametx/api"
	"github.com/matt-g-everett/frametx/config"
	"github.com/matt-g-everett/frametx/metrics"
	"github.com/matt-g-everett/frametx/stream"
	"github.com/matt-g-everett/frametx/telemetry"
)

type app struct {
	Config    config.Config
	Handoff   *stream.Handoff
	Pacer     *stream.Pacer
	Server    *api.Server
	Metrics   *metrics.Recorder
	Telemetry *telemetry.MqttPublisher
	logger    *logrus.Entry
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{
		Config:  cfg,
		Handoff: stream.NewHandoff(),
		Metrics: metrics.NewRecorder(),
		logger:  config.Logger("app"),
	}

	renderer, err := stream.NewCaptionRenderer(cfg.Frame)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	a.Pacer = stream.NewPacer(cfg.Frame, renderer, a.Handoff, stream.WithStats(a.Metrics))

	opts := []api.Option{
		api.WithWaitTimeout(cfg.Server.FrameWaitTimeout),
		api.WithRecorder(a.Metrics),
	}
	if cfg.Mqtt.Enabled() {
		mqtt.ERROR = log.New(config.Logger("mqtt").WriterLevel(logrus.ErrorLevel), "", 0)
		a.Telemetry = telemetry.NewMqttPublisher(cfg.Mqtt)
		opts = append(opts, api.WithPublisher(a.Telemetry))
	}
	a.Server = api.NewServer(a.Handoff, opts...)

	return a, nil
}

// run serves until ctx is done, then stops the pacer by closing the receiving
// side of the handoff and waits for it to exit.
func (a *app) run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.Config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Config.Server.Addr, err)
	}

	if a.Telemetry != nil {
		if err := a.Telemetry.Start(ctx); err != nil {
			// Telemetry is optional; frames are still served without it.
			a.logger.WithError(err).Warn("Telemetry disabled")
		}
	}

	go func() {
		if err := a.Metrics.Serve(ctx, a.Config.Metrics); err != nil {
			a.logger.WithError(err).Error("Metrics server failed")
		}
	}()

	// No write timeout: /frames blocks until the next frame.
	server := &http.Server{
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.Pacer.Start()

	errs := make(chan error, 1)
	go func() {
		errs <- server.Serve(listener)
	}()

	a.logger.WithFields(logrus.Fields{
		"addr":        listener.Addr().String(),
		"width":       a.Config.Frame.Width,
		"height":      a.Config.Frame.Height,
		"interval_ms": a.Config.Frame.IntervalMs,
	}).Info("Serving frames")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errs:
	}

	a.Handoff.CloseReceiver()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Frame server shutdown")
	}

	select {
	case <-a.Pacer.Done():
		a.logger.Info("Pacer stopped")
	case <-shutdownCtx.Done():
		a.logger.Warn("Pacer did not stop in time")
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
