// Package perf writes the benchmark measurement artifacts: a time log of
// timestamped phase events and a sidecar memory log carrying per-process
// memory snapshots next to every event. The files are a measured output of a
// run, separate from operator logging, and their line format is consumed by
// the perfstat analyzer.
package perf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

// Logger writes paired time and memory logs for one role of one run.
type Logger struct {
	mu       sync.Mutex
	timeFile *os.File
	memFile  *os.File
	proc     *process.Process
	log      *logrus.Logger

	// TimePath and MemoryPath are the created log files.
	TimePath   string
	MemoryPath string
}

// New creates the time and memory log files under
// <measurementRoot>/data_time and <measurementRoot>/data_memory, named
// <filePrefix><role>.txt. Directories are created as needed.
func New(measurementRoot, filePrefix, role string, log *logrus.Logger) (*Logger, error) {
	if log == nil {
		log = logrus.New()
	}

	timeDir := filepath.Join(measurementRoot, "data_time")
	memDir := filepath.Join(measurementRoot, "data_memory")
	for _, dir := range []string{timeDir, memDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create measurement directory: %w", err)
		}
	}

	name := filePrefix + role + ".txt"
	l := &Logger{
		TimePath:   filepath.Join(timeDir, name),
		MemoryPath: filepath.Join(memDir, name),
		log:        log,
	}

	var err error
	if l.timeFile, err = os.OpenFile(l.TimePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
		return nil, fmt.Errorf("failed to open time log: %w", err)
	}
	if l.memFile, err = os.OpenFile(l.MemoryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
		l.timeFile.Close()
		return nil, fmt.Errorf("failed to open memory log: %w", err)
	}

	if l.proc, err = process.NewProcess(int32(os.Getpid())); err != nil {
		log.Warnf("process memory introspection unavailable: %v", err)
	}

	log.Infof("time measurements stored in %s", l.TimePath)
	log.Infof("memory measurements stored in %s", l.MemoryPath)
	return l, nil
}

// Log writes a timestamped event line to the time log and the same line plus
// five memory snapshots to the memory log. Write failures are reported to the
// operator log; a benchmark run is not aborted over a measurement line.
func (l *Logger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format(timestampLayout)
	if _, err := fmt.Fprintf(l.timeFile, "%s : %s\n", ts, msg); err != nil {
		l.log.Warnf("failed to write time log line: %v", err)
		return
	}

	snap := l.snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "%s : %s\n", ts, msg)
	fmt.Fprintf(&b, "%s SWAP: %d kB\n", ts, snap.swapKB)
	fmt.Fprintf(&b, "%s RAM Peak: %d kB\n", ts, snap.hwmKB)
	fmt.Fprintf(&b, "%s RAM: %d kB\n", ts, snap.rssKB)
	fmt.Fprintf(&b, "%s Virtual Memory Peak: %d kB\n", ts, snap.peakKB)
	fmt.Fprintf(&b, "%s Virtual Memory: %d kB\n", ts, snap.sizeKB)
	if _, err := l.memFile.WriteString(b.String()); err != nil {
		l.log.Warnf("failed to write memory log lines: %v", err)
	}
}

// Close closes both log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if err := l.timeFile.Close(); err != nil {
		firstErr = err
	}
	if err := l.memFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

type memSnapshot struct {
	swapKB uint64
	hwmKB  uint64
	rssKB  uint64
	peakKB uint64
	sizeKB uint64
}

// snapshot samples the process memory counters. RSS, VMS, HWM and Swap come
// from gopsutil; VmPeak is not exposed there and is read from
// /proc/self/status directly. On platforms without that facility the peak
// degrades to zero.
func (l *Logger) snapshot() memSnapshot {
	var snap memSnapshot
	if l.proc != nil {
		if info, err := l.proc.MemoryInfo(); err == nil && info != nil {
			snap.swapKB = info.Swap / 1024
			snap.hwmKB = info.HWM / 1024
			snap.rssKB = info.RSS / 1024
			snap.sizeKB = info.VMS / 1024
		}
	}
	snap.peakKB = readVmPeakKB()
	return snap
}

func readVmPeakKB() uint64 {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmPeak:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb
	}
	return 0
}
