package main

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// runLockPath is keyed on the input directory so independent pipelines can
// run side by side while two runs over the same videos cannot.
func runLockPath(inputDir string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filepath.Clean(inputDir)))
	return filepath.Join(os.TempDir(), fmt.Sprintf("hardsub-%08x.lock", h.Sum32()))
}

// acquireRunLock takes the single-instance lock for inputDir. The returned
// lock must be unlocked when the run ends.
func acquireRunLock(inputDir string) (*flock.Flock, error) {
	lock := flock.New(runLockPath(inputDir))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, withExitCode(exitBusy, fmt.Errorf("another run is already processing %s", inputDir))
	}
	return lock, nil
}
