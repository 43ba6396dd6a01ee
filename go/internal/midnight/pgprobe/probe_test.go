package pgprobe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
)

// testDSN points at a scratch Postgres database. The tests skip without it.
const testDSN = "MIDNIGHT_TEST_DSN"

func TestStateVersion(t *testing.T) {
	dsn := os.Getenv(testDSN)
	if dsn == "" {
		t.Skipf("%s not set", testDSN)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	table := fmt.Sprintf("state_version_%d", time.Now().UnixNano())
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (id BIGINT PRIMARY KEY, state_version BIGINT NOT NULL)", table)); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP TABLE %s", table))
	}()

	missing := NewProbe(pool, table, 1)
	_, err = missing.StateVersion(ctx)
	var v *engine.ValidationError
	if !errors.As(err, &v) {
		t.Errorf("Expected ValidationError for a missing row, got %T %v", err, err)
	}
	if engine.IsRetryable(err) {
		t.Errorf("Expected a missing row not to be retryable")
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf("INSERT INTO %s (id, state_version) VALUES (1, 7)", table)); err != nil {
		t.Fatal(err)
	}
	got, err := missing.StateVersion(ctx)
	if err != nil || got != 7 {
		t.Errorf("Expected version 7, got %d %v", got, err)
	}
}

func TestStateVersionUnreachable(t *testing.T) {
	dsn := os.Getenv(testDSN)
	if dsn == "" {
		t.Skipf("%s not set", testDSN)
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	pool.Close()

	_, err = NewProbe(pool, "game_state", 1).StateVersion(ctx)
	if !engine.IsRetryable(err) {
		t.Errorf("Expected a closed pool to give a NetworkError, got %T %v", err, err)
	}
}
