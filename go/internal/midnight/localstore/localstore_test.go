package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roscoeevans/Skulking/go/internal/midnight/activity"
)

var (
	_ activity.Store = (*SQLiteStore)(nil)
	_ activity.Store = (*MemoryStore)(nil)
)

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "device.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := s.Put(ctx, "k", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "k", []byte("two")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(v) != "two" {
		t.Errorf("Expected two, got %q ok=%v err=%v", v, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Errorf("Expected key to be deleted")
	}
}

func TestLifetimeStatsPersistInSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "device.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := activity.LifetimeStats{TotalCorrect: 3, TotalAnswered: 5, SessionsPlayed: 2}
	activity.SaveLifetimeStats(ctx, s, want)
	if got := activity.LoadLifetimeStats(ctx, s); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	_ = s.Put(ctx, "k", buf)
	buf[0] = 'z'
	v, _, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Errorf("Expected stored copy abc, got %q", v)
	}
}
