// perfstat digests the time logs of finished benchmark runs: it pairs the
// Start/End events of every measured phase, prints per-run summaries, stores
// them in the results catalog and archives the processed logs as .xz.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	hhebench "github.com/hannahmeinh/hhe-bench"
	"github.com/hannahmeinh/hhe-bench/internal/catalog"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

// logName captures <stamp>_<parameters>_<role>.txt.
var logName = regexp.MustCompile(`^(\d{8}_\d{6})_(.+_IntSize:\d+)_(.+)\.txt$`)

func main() {
	log := logrus.New()

	params, err := hhebench.LoadParameters("harness.yaml")
	if err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}

	if err := run(params, log); err != nil {
		log.Errorf("perfstat failed: %v", err)
		os.Exit(1)
	}
}

func run(params hhebench.Parameters, log *logrus.Logger) error {
	timeDir := filepath.Join(params.MeasurementRoot(), "data_time")
	entries, err := os.ReadDir(timeDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no time logs found")
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", timeDir, err)
	}

	cat, err := catalog.Open(params.CatalogDir(), log)
	if err != nil {
		return err
	}
	defer cat.Close()

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := logName.FindStringSubmatch(entry.Name())
		if m == nil {
			log.Warnf("skipping %s: not a stamped time log", entry.Name())
			continue
		}

		path := filepath.Join(timeDir, entry.Name())
		summary, err := digest(path, m[1], m[3], m[2])
		if err != nil {
			return fmt.Errorf("failed to digest %s: %w", entry.Name(), err)
		}

		printSummary(summary)
		if err := cat.PutSummary(summary); err != nil {
			return err
		}
		if err := archive(path, filepath.Join(timeDir, "archive")); err != nil {
			return err
		}
		processed++
	}

	log.Infof("processed %d time logs", processed)
	return nil
}

// digest parses one time log into a phase summary. A phase is the event text
// up to its trailing Start/End keyword; the optional " : <bytes>" suffix is
// ignored for pairing.
func digest(path, stamp, role, parameters string) (catalog.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return catalog.Summary{}, err
	}
	defer f.Close()

	type agg struct {
		count               int
		total, minDur, maxDur time.Duration
	}
	open := make(map[string]time.Time)
	stats := make(map[string]*agg)
	var order []string
	events := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < len(timestampLayout)+3 {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, line[:len(timestampLayout)], time.Local)
		if err != nil {
			continue
		}
		msg := strings.TrimPrefix(line[len(timestampLayout):], " : ")
		if detail := strings.Index(msg, " : "); detail >= 0 {
			msg = msg[:detail]
		}
		events++

		switch {
		case strings.HasSuffix(msg, " Start"):
			open[strings.TrimSuffix(msg, " Start")] = ts
		case strings.HasSuffix(msg, " End"):
			phase := strings.TrimSuffix(msg, " End")
			start, ok := open[phase]
			if !ok {
				continue
			}
			delete(open, phase)

			dur := ts.Sub(start)
			st, ok := stats[phase]
			if !ok {
				st = &agg{minDur: dur, maxDur: dur}
				stats[phase] = st
				order = append(order, phase)
			}
			st.count++
			st.total += dur
			if dur < st.minDur {
				st.minDur = dur
			}
			if dur > st.maxDur {
				st.maxDur = dur
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return catalog.Summary{}, err
	}

	sort.Strings(order)
	summary := catalog.Summary{
		Stamp:      stamp,
		Role:       role,
		Parameters: parameters,
		Frames:     events,
	}
	for _, phase := range order {
		st := stats[phase]
		summary.Phases = append(summary.Phases, catalog.PhaseStat{
			Name:        phase,
			Count:       st.count,
			TotalMicros: st.total.Microseconds(),
			MinMicros:   st.minDur.Microseconds(),
			MaxMicros:   st.maxDur.Microseconds(),
		})
	}
	return summary, nil
}

func printSummary(s catalog.Summary) {
	fmt.Printf("%s %s (%s)\n", s.Stamp, s.Role, s.Parameters)
	for _, p := range s.Phases {
		mean := int64(0)
		if p.Count > 0 {
			mean = p.TotalMicros / int64(p.Count)
		}
		fmt.Printf("  %-40s n=%-5d total=%8d us  mean=%8d us  min=%8d us  max=%8d us\n",
			p.Name, p.Count, p.TotalMicros, mean, p.MinMicros, p.MaxMicros)
	}
}

// archive moves a processed log into dir as an xz-compressed copy.
func archive(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(path)+".xz"))
	if err != nil {
		return err
	}

	w, err := xz.NewWriter(dst)
	if err != nil {
		dst.Close()
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("failed to finish xz stream: %w", err)
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
