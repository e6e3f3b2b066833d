package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
)

// Runs only against a disposable Redis: REDIS_TEST_ADDR=localhost:6379 go test ./internal/pkg/storage
func TestRedisLocker_Exclusive(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	l, err := NewRedisLocker(config.RedisConfig{Addr: addr, LockTTL: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	defer l.Close()

	key := "test:" + time.Now().Format("150405.000000000")
	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Lock err = %v, want %v", err, context.DeadlineExceeded)
	}

	unlock()
	unlock2, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	unlock2()
}
