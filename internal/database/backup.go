package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetbook/internal/config"

	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "assetbook_"
	snapshotExt    = ".db"
	snapshotLayout = "20060102_150405"
)

var ErrBackupUnsupported = errors.New("snapshots require a file-backed sqlite database")

// BackupService writes timestamped snapshots of the sqlite file and prunes
// the ones older than the retention window.
type BackupService struct {
	db     *DB
	cfg    config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BackupService{db: db, cfg: cfg, logger: logger, now: time.Now}
}

// Run is the scheduler entry point: snapshot, then prune.
func (s *BackupService) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	path, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	removed := s.Prune()
	s.logger.Info().Str("snapshot", path).Int("pruned", removed).Msg("database snapshot done")
	return nil
}

// Snapshot writes a consistent copy of the database and returns its path.
func (s *BackupService) Snapshot(ctx context.Context) (string, error) {
	src := s.db.Path()
	if s.db.Driver() != DriverSQLite || src == "" || src == ":memory:" {
		return "", ErrBackupUnsupported
	}
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	dst := filepath.Join(s.cfg.StoragePath, snapshotPrefix+s.now().UTC().Format(snapshotLayout)+snapshotExt)

	quoted := strings.ReplaceAll(dst, "'", "''")
	_, err := s.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'")
	if err == nil {
		return dst, nil
	}
	s.logger.Warn().Err(err).Str("snapshot", dst).Msg("VACUUM INTO failed, copying file instead")

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("copy database file: %w", err)
	}
	return dst, nil
}

// copyFile goes through a temp file so a half-written snapshot never carries the final name.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// Prune deletes snapshots older than RetentionDays. Other files in the
// directory are left alone. Returns the number of removed snapshots.
func (s *BackupService) Prune() int {
	if s.cfg.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Str("dir", s.cfg.StoragePath).Msg("read snapshot dir")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StoragePath, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("remove expired snapshot")
			continue
		}
		removed++
	}
	return removed
}
