package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/healthmate/core/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBackupDir = "./backups"
	s3PathTemplate   = "backups/{Y}/{m}/{filename}"
	retainBackups    = 14
)

// tableNames lists the tables exported in each backup.
var tableNames = []string{
	"users", "reports", "report_insights", "insight_feedback",
	"vitals", "vitals_insights",
}

// Service produces nightly database dumps: one JSON file per table, zipped,
// written under the configured directory and optionally mirrored to S3.
type Service struct {
	db  *gorm.DB
	cfg config.BackupConfig
	log *zap.Logger
}

func NewService(db *gorm.DB, cfg config.BackupConfig, log *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: log}
}

func (s *Service) dir() string {
	if s.cfg.Dir != "" {
		return s.cfg.Dir
	}
	return defaultBackupDir
}

// Run creates one backup archive. Registered as a cron job; safe to invoke
// manually from the scheduler's run-now path.
func (s *Service) Run(ctx context.Context) error {
	if !s.cfg.Enable {
		return nil
	}

	now := time.Now()
	buf, err := s.createZip()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return err
	}
	filename := fmt.Sprintf("backup-%s.zip", now.Format("2006-01-02T15-04-05"))
	path := filepath.Join(s.dir(), filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	s.log.Info("backup written",
		zap.String("path", path), zap.Int("bytes", buf.Len()))

	if s.cfg.S3.Bucket != "" {
		uploader, err := newS3Uploader(s.cfg.S3)
		if err != nil {
			return err
		}
		key := renderObjectKey(s3PathTemplate, filename, now)
		if _, err := uploader.Upload(ctx, key, buf.Bytes(), "application/zip"); err != nil {
			return err
		}
		s.log.Info("backup uploaded", zap.String("key", key))
	}

	s.prune()
	return nil
}

// createZip exports every table as a JSON array.
func (s *Service) createZip() (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	for _, table := range tableNames {
		var rows []map[string]interface{}
		if err := s.db.Table(table).Find(&rows).Error; err != nil {
			s.log.Warn("table export failed", zap.String("table", table), zap.Error(err))
			continue
		}
		data, err := json.Marshal(rows)
		if err != nil {
			continue
		}
		f, err := w.Create(table + ".json")
		if err != nil {
			continue
		}
		f.Write(data)
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

// prune drops the oldest archives beyond the retention window.
func (s *Service) prune() {
	entries, err := os.ReadDir(s.dir())
	if err != nil {
		return
	}
	var zips []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".zip") {
			zips = append(zips, e.Name())
		}
	}
	if len(zips) <= retainBackups {
		return
	}
	// ReadDir sorts by name and the timestamp filename sorts chronologically
	for _, name := range zips[:len(zips)-retainBackups] {
		os.Remove(filepath.Join(s.dir(), name))
	}
}

func renderObjectKey(template, filename string, now time.Time) string {
	replacer := strings.NewReplacer(
		"{Y}", now.Format("2006"),
		"{m}", now.Format("01"),
		"{d}", now.Format("02"),
		"{filename}", filename,
	)
	key := replacer.Replace(template)
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	if key == "" {
		return filename
	}
	return key
}
