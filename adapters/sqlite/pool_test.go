package sqlite

import (
	"errors"
	"os"
	"testing"
)

func TestPoolLifecycle(t *testing.T) {
	resetPool()
	t.Cleanup(resetPool)

	if _, err := Pool(); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("Pool before init = %v, want ErrPoolNotInitialized", err)
	}

	f, err := os.CreateTemp("", "fusion-pool-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })

	db, err := InitPool(path)
	if err != nil {
		t.Fatalf("init pool: %v", err)
	}
	if db == nil {
		t.Fatal("init pool returned nil db")
	}

	got, err := Pool()
	if err != nil {
		t.Fatalf("pool after init: %v", err)
	}
	if got != db {
		t.Error("Pool should return the initialized handle")
	}

	// The pool is process-wide; a second initialization must fail.
	if _, err := InitPool(path); !errors.Is(err, ErrPoolInitialized) {
		t.Errorf("second InitPool = %v, want ErrPoolInitialized", err)
	}
}

func TestInitPoolAcceptsDatabaseURL(t *testing.T) {
	resetPool()
	t.Cleanup(resetPool)

	f, err := os.CreateTemp("", "fusion-url-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(path) })

	db, err := InitPool("sqlite://" + path)
	if err != nil {
		t.Fatalf("init pool with sqlite:// url: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate through url-opened pool: %v", err)
	}
}
