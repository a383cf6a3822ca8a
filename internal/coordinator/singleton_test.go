package coordinator

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSingletonExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.lock")

	first, err := AcquireSingleton(path)
	if err != nil {
		t.Fatalf("first AcquireSingleton: %v", err)
	}
	defer first.Release()

	start := time.Now()
	_, err = AcquireSingleton(path)
	elapsed := time.Since(start)

	if err != ErrAlreadyRunning {
		t.Fatalf("got err %v, want ErrAlreadyRunning", err)
	}
	if elapsed < singletonRetryWindow {
		t.Fatalf("returned after %v, want at least the %v retry window", elapsed, singletonRetryWindow)
	}
}

func TestSingletonReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.lock")

	first, err := AcquireSingleton(path)
	if err != nil {
		t.Fatalf("AcquireSingleton: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	second, err := AcquireSingleton(path)
	if err != nil {
		t.Fatalf("second AcquireSingleton: %v", err)
	}
	defer second.Release()
}
