package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/config"
	"github.com/sandeepkv93/live-voting-service/internal/health"
)

func testConfig() *config.Config {
	return &config.Config{
		ShutdownTimeout:              10 * time.Second,
		ShutdownHTTPDrainTimeout:     2 * time.Second,
		ShutdownObservabilityTimeout: 3 * time.Second,
	}
}

func TestNewAssignsDependenciesAndTimeouts(t *testing.T) {
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: ":8080", ReadHeaderTimeout: time.Second}
	readiness := health.NewProbeRunner(100*time.Millisecond, 50*time.Millisecond)
	stopped := false
	stop := func() { stopped = true }

	a := New(cfg, logger, server, nil, nil, nil, readiness, stop)
	if a.Config != cfg || a.Logger != logger || a.Server != server || a.Readiness != readiness {
		t.Fatal("expected app dependencies to be assigned")
	}
	if a.ShutdownTimeout != cfg.ShutdownTimeout || a.ShutdownHTTPDrainTimeout != cfg.ShutdownHTTPDrainTimeout || a.ShutdownObservabilityTimeout != cfg.ShutdownObservabilityTimeout {
		t.Fatal("expected app shutdown timeouts copied from config")
	}

	a.StopBackgroundTasks()
	if !stopped {
		t.Fatal("expected stop callback to be set")
	}
}

func TestRunStopsWorkersAndClosersOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	var workerExited, closed atomic.Bool
	worker := func(ctx context.Context) error {
		<-ctx.Done()
		workerExited.Store(true)
		return ctx.Err()
	}
	readiness := health.NewProbeRunner(time.Second, 0)
	a := New(
		testConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		&http.Server{Addr: addr, Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second},
		nil,
		[]Worker{worker},
		[]func(){func() { closed.Store(true) }},
		readiness,
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if !workerExited.Load() || !closed.Load() {
		t.Fatalf("expected worker exit and closer run, worker=%v closer=%v", workerExited.Load(), closed.Load())
	}
	if ready, _ := readiness.Ready(context.Background()); ready {
		t.Fatal("expected readiness to report draining after shutdown")
	}
}
