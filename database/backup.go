package database

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const backupStamp = "20060102_150405"

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped snapshot of the sqlite file next to it. Postgres databases
// are backed up by their own tooling.
func (d *Database) Backup(ctx context.Context) error {
	if d.driver != SQLite {
		return nil
	}
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	snapshot := filepath.Join(dir, fmt.Sprintf("%s_solarcast.db", time.Now().Format(backupStamp)))
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return fmt.Errorf("vacuuming database into '%s': %w", snapshot, err)
	}

	archive := snapshot + ".zip"
	if err := zipFile(snapshot, archive, filepath.Base(d.path)); err != nil {
		return err
	}
	if err := os.Remove(snapshot); err != nil {
		d.logger.Warn("could not remove uncompressed snapshot", slog.Any("error", err))
	}

	d.logger.Info("database backup complete", slog.String("filename", archive))
	return nil
}

func zipFile(src, dst, entry string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot for compression: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("get file info: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip file entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write snapshot to zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return nil
}

var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_solarcast\.db\.zip$`)

// PurgeBackups removes the snapshots older than retentionDays.
func (d *Database) PurgeBackups(retentionDays int) error {
	if d.driver != SQLite || retentionDays < 1 {
		return nil
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	files, err := os.ReadDir(d.backupDir())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	for _, file := range files {
		m := backupName.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(backupStamp, m[1], time.Local)
		if err != nil || time.Since(t) <= retention {
			continue
		}
		path := filepath.Join(d.backupDir(), file.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		removed++
	}

	d.logger.Debug("backup purge complete", slog.Int("removed", removed))
	return nil
}
