package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"advisor-dashboard/internal/config"
)

func newTestGracefulServer() *GracefulServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGracefulServer(&http.Server{Addr: "127.0.0.1:0"}, logger, config.ServerConfig{ShutdownTimeout: time.Second})
}

func TestGracefulServer_HooksRunInOrder(t *testing.T) {
	gs := newTestGracefulServer()

	var order []string
	gs.RegisterShutdownHook("flush", func(ctx context.Context) error {
		order = append(order, "flush")
		return nil
	})
	gs.RegisterShutdownHook("close", func(ctx context.Context) error {
		order = append(order, "close")
		return nil
	})

	if err := gs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if strings.Join(order, ",") != "flush,close" {
		t.Errorf("hook order = %v, want flush then close", order)
	}
}

func TestGracefulServer_FailingHookDoesNotStopOthers(t *testing.T) {
	gs := newTestGracefulServer()

	ran := false
	gs.RegisterShutdownHook("flush", func(ctx context.Context) error {
		return errors.New("disk full")
	})
	gs.RegisterShutdownHook("close", func(ctx context.Context) error {
		ran = true
		return nil
	})

	err := gs.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "flush") {
		t.Errorf("Shutdown() error = %v, want the flush failure", err)
	}
	if !ran {
		t.Error("later hooks should still run")
	}
}

func TestGracefulServer_ExpiredContextSkipsHooks(t *testing.T) {
	gs := newTestGracefulServer()

	ran := false
	gs.RegisterShutdownHook("flush", func(ctx context.Context) error {
		ran = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := gs.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() error = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("hooks should be skipped once the deadline has passed")
	}
}
