package pipeline

import (
	"errors"
	"os"
	"path/filepath"

	"garpconnect/internal/logging"
)

// ErrAlreadyClaimed reports that another worker renamed the file first.
var ErrAlreadyClaimed = errors.New("file already claimed")

// Claim moves a watched file into the processing directory. The rename
// is atomic within a filesystem, so exactly one caller wins; losers see
// the source missing and get ErrAlreadyClaimed.
func (m *Manager) Claim(watchPath string) (string, error) {
	dest := filepath.Join(m.cfg.Paths.ProcessingDir, filepath.Base(watchPath))
	if err := os.Rename(watchPath, dest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrAlreadyClaimed
		}
		return "", err
	}
	return dest, nil
}

// RecoverProcessing returns leftover claims to the watch directory.
// A file in processing at startup means a previous run died mid-flight;
// moving it back lets the normal discovery path pick it up again.
func (m *Manager) RecoverProcessing() error {
	entries, err := os.ReadDir(m.cfg.Paths.ProcessingDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(m.cfg.Paths.ProcessingDir, entry.Name())
		dest := filepath.Join(m.cfg.Paths.WatchDir, entry.Name())
		if err := os.Rename(src, dest); err != nil {
			return err
		}
		m.logger.Warn("recovered interrupted claim",
			logging.String(logging.FieldFile, entry.Name()))
	}
	return nil
}
