package clicommand

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/kvenv/kvenv/logger"
)

type profilerMode string

const (
	cpuMode          profilerMode = `cpu`
	memMode          profilerMode = `mem`
	mutexMode        profilerMode = `mutex`
	blockMode        profilerMode = `block`
	traceMode        profilerMode = `trace`
	threadCreateMode profilerMode = `thread`
)

func parseProfilerMode(mode string) (profilerMode, error) {
	switch mode {
	case `cpu`:
		return cpuMode, nil
	case `mem`, `memory`:
		return memMode, nil
	case `mutex`:
		return mutexMode, nil
	case `block`:
		return blockMode, nil
	case `thread`:
		return threadCreateMode, nil
	case `trace`:
		return traceMode, nil
	default:
		return "", fmt.Errorf("unknown profile mode %q", mode)
	}
}

type profiler struct {
	logger logger.Logger
	mode   profilerMode
	dir    string
	closer func()
}

// Profile starts a profiling session that writes into a new temporary
// directory. The returned function stops it and flushes the profile.
func Profile(l logger.Logger, mode string) (func(), error) {
	m, err := parseProfilerMode(mode)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "kvenv-profile")
	if err != nil {
		return nil, fmt.Errorf("creating profile output directory: %w", err)
	}

	p := &profiler{logger: l, mode: m, dir: dir}
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p.Stop, nil
}

// Stop stops the profile and flushes any unwritten data.
func (p *profiler) Stop() {
	p.closer()
}

// Start starts a new profiling session.
func (p *profiler) Start() error {
	fn := filepath.Join(p.dir, string(p.mode)+".pprof")
	f, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("creating %s profile %q: %w", p.mode, fn, err)
	}

	// called after mode specific closers
	closer := func() {
		if err := f.Close(); err != nil {
			p.logger.Error("Failed to close %s: %v", fn, err)
			return
		}
		p.logger.Info("Finished %s profiling, %s", p.mode, fn)
	}

	check := func(err error) {
		if err != nil {
			p.logger.Error("Profiler mode %s failed: %v", p.mode, err)
		}
	}

	switch p.mode {
	case cpuMode:
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		p.logger.Info("CPU profiling enabled, %s", fn)
		p.closer = func() {
			pprof.StopCPUProfile()
			closer()
		}

	case memMode:
		p.logger.Info("Memory profiling enabled, %s", fn)
		p.closer = func() {
			check(pprof.WriteHeapProfile(f))
			closer()
		}

	case mutexMode:
		runtime.SetMutexProfileFraction(1)
		p.logger.Info("Mutex profiling enabled, %s", fn)
		p.closer = func() {
			if mp := pprof.Lookup("mutex"); mp != nil {
				check(mp.WriteTo(f, 0))
			}
			runtime.SetMutexProfileFraction(0)
			closer()
		}

	case blockMode:
		runtime.SetBlockProfileRate(1)
		p.logger.Info("Block profiling enabled, %s", fn)
		p.closer = func() {
			check(pprof.Lookup("block").WriteTo(f, 0))
			runtime.SetBlockProfileRate(0)
			closer()
		}

	case threadCreateMode:
		p.logger.Info("Thread creation profiling enabled, %s", fn)
		p.closer = func() {
			if mp := pprof.Lookup("threadcreate"); mp != nil {
				check(mp.WriteTo(f, 0))
			}
			closer()
		}

	case traceMode:
		if err := trace.Start(f); err != nil {
			f.Close()
			return fmt.Errorf("starting trace: %w", err)
		}
		p.logger.Info("Trace enabled, %s", fn)
		p.closer = func() {
			trace.Stop()
			closer()
		}
	}

	return nil
}
