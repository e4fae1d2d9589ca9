package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewShutdownManagerDefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, 0)
	if sm.timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", sm.timeout)
	}
}

func TestWaitForShutdownRunsFuncs(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), &http.Server{}, time.Second)

	var calls int32
	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sm.WaitForShutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("shutdown funcs called %d times, want 3", calls)
	}
}

func TestWaitForShutdownCollectsErrors(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)
	boom := errors.New("close failed")
	sm.RegisterShutdownFunc(func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.WaitForShutdown(ctx)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestWaitForShutdownTimeout(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, 50*time.Millisecond)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sm.WaitForShutdown(ctx); err == nil {
		t.Error("expected timeout error")
	}
}
