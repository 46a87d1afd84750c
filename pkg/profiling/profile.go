// Package profiling captures CPU, heap and execution traces for a bounded window.
package profiling

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"
)

// Start begins CPU and trace profiling into dir and stops on its own after
// window. The heap profile is written when profiling stops. The returned stop
// function may be called earlier, e.g. on shutdown, and is safe to call twice.
func Start(dir string, window time.Duration) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	cf, err := os.Create(filepath.Join(dir, "cpu.prof"))
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(cf); err != nil {
		cf.Close()
		return nil, err
	}

	tf, err := os.Create(filepath.Join(dir, "trace.prof"))
	if err != nil {
		pprof.StopCPUProfile()
		cf.Close()
		return nil, err
	}
	if err := trace.Start(tf); err != nil {
		pprof.StopCPUProfile()
		cf.Close()
		tf.Close()
		return nil, err
	}

	slog.Info("profiling enabled", "dir", dir, "window", window)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			trace.Stop()

			err := writeHeap(filepath.Join(dir, "memory.prof"))
			err = errors.Join(err, cf.Close(), tf.Close())
			if err != nil {
				slog.Error("failed to finish profiling", "err", err)
				return
			}
			slog.Info("finished the profiling", "dir", dir)
		})
	}

	if window > 0 {
		time.AfterFunc(window, stop)
	}

	return stop, nil
}

func writeHeap(path string) error {
	mf, err := os.Create(path)
	if err != nil {
		return err
	}
	defer mf.Close()

	return pprof.WriteHeapProfile(mf)
}
