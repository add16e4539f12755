package spool

import (
	"os"
	"path/filepath"
	"regexp"
)

var stampPrefix = regexp.MustCompile(`^\d{8}_\d{6}`)

// LatestFile returns the path of the newest spool in dir, selected by the
// lexicographic maximum of the 15-character YYYYMMDD_HHMMSS filename prefix.
// Files without a stamp prefix are ignored. Returns "" when the directory is
// missing or holds no stamped file.
func LatestFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var latestName, latestStamp string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stamp := stampPrefix.FindString(entry.Name())
		if stamp == "" {
			continue
		}
		if stamp > latestStamp {
			latestStamp = stamp
			latestName = entry.Name()
		}
	}

	if latestName == "" {
		return ""
	}
	return filepath.Join(dir, latestName)
}
