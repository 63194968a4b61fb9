package heartbeat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Write records the wall-clock time of the last fully successful run. Cron
// wrappers alert when the file goes stale.
func Write(path string, now time.Time) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("heartbeat path must not be empty")
	}
	clean = filepath.Clean(clean)
	if err := os.WriteFile(clean, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write heartbeat %s: %w", clean, err)
	}
	return nil
}
