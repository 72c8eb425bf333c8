package upload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Sweep removes blobs that no record references, e.g. left behind by a
// cancelled upload. Files younger than minAge are kept since their record may
// not be appended yet.
func (s *LocalBlobStore) Sweep(referenced map[string]bool, minAge time.Duration, now time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || now.Sub(info.ModTime()) < minAge {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return nil
		}
		if referenced[s.URLPrefix+"/"+escapeKey(filepath.ToSlash(rel))] {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	return removed, err
}

// StartSweeper runs sweep every interval until ctx is done. Best-effort: failures are logged.
func StartSweeper(ctx context.Context, interval time.Duration, sweep func(context.Context) (int, error), log *zap.Logger) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sweep(ctx)
				if err != nil {
					log.Warn("orphan blob sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("orphan blobs removed", zap.Int("count", n))
				}
			}
		}
	}()
}
