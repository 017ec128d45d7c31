package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory and glob whose files expire, such as the
// JSON log under log_dir or stored uploads under upload_dir. Keep lists files
// that must survive regardless of age.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Keep    []string
}

// Prune removes files older than retentionDays from every target and returns
// how many were deleted. retentionDays <= 0 disables pruning.
func Prune(logger *slog.Logger, retentionDays int, now time.Time, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		keep := make(map[string]struct{}, len(target.Keep))
		for _, name := range target.Keep {
			keep[filepath.Base(name)] = struct{}{}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if _, ok := keep[name]; ok {
				continue
			}
			if target.Pattern != "" {
				if matched, err := filepath.Match(target.Pattern, name); err != nil || !matched {
					continue
				}
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "retention remove failed; file remains", "retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and directory ownership"),
					String(FieldImpact, "old file remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("expired file pruned", String("path", path), String(FieldEventType, "retention_pruned"))
			}
		}
	}
	return removed
}
