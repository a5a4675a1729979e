package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs removes session log files older than retentionDays from dir.
// The file at keep, usually the current session log, is never removed.
// Returns the number of files removed.
func CleanupOldLogs(logger *slog.Logger, dir, keep string, retentionDays int) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			WarnWithContext(logger, "log retention scan failed", "log_retention_failed",
				String("dir", dir),
				Error(err),
				String(FieldErrorHint, "check log_dir permissions"),
				String(FieldImpact, "old session logs are kept"),
			)
		}
		return 0
	}

	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if keep != "" && path == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "failed to remove old log", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "remove the file manually"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Debug("removed old session logs", Int("count", removed), String("dir", dir))
	}
	return removed
}
