// Package export writes the flat-file output of a crawl run: a JSON document,
// a CSV with the same column order every run, and the list of URLs that could
// not be turned into records.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/listing"
)

// Manifest names the files one Write produced.
type Manifest struct {
	JSONPath   string
	CSVPath    string
	FailedPath string
	Records    int
	Failed     int
}

// Sink persists a finished run.
type Sink interface {
	Write(ctx context.Context, records []listing.Record, failed []listing.FailedURL) (Manifest, error)
}

// FSSink writes timestamped files under a single output directory.
type FSSink struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewFSSink writes into dir, creating it on first use.
func NewFSSink(dir string, logger *zap.Logger) *FSSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSSink{dir: dir, logger: logger, now: time.Now}
}

// Write persists records as properties_<stamp>.json and .csv, and failures as
// failed_urls_<stamp>.txt. The failed file is only written when there are
// failures; the record files are written even when empty so a run always
// leaves evidence.
func (s *FSSink) Write(ctx context.Context, records []listing.Record, failed []listing.FailedURL) (Manifest, error) {
	if err := ctx.Err(); err != nil {
		return Manifest{}, fmt.Errorf("export canceled: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return Manifest{}, fmt.Errorf("create output dir: %w", err)
	}
	stamp := s.now().UTC().Format("20060102_150405")
	m := Manifest{
		JSONPath: filepath.Join(s.dir, "properties_"+stamp+".json"),
		CSVPath:  filepath.Join(s.dir, "properties_"+stamp+".csv"),
		Records:  len(records),
		Failed:   len(failed),
	}

	if err := s.writeJSON(m.JSONPath, records); err != nil {
		return Manifest{}, err
	}
	if err := s.writeCSV(m.CSVPath, records); err != nil {
		return Manifest{}, err
	}
	if len(failed) > 0 {
		m.FailedPath = filepath.Join(s.dir, "failed_urls_"+stamp+".txt")
		if err := s.writeFailed(m.FailedPath, failed); err != nil {
			return Manifest{}, err
		}
	}

	s.logger.Info("run exported",
		zap.String("json", m.JSONPath),
		zap.String("csv", m.CSVPath),
		zap.Int("records", m.Records),
		zap.Int("failed", m.Failed),
	)
	return m, nil
}

func (s *FSSink) writeJSON(path string, records []listing.Record) error {
	if records == nil {
		records = []listing.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write json export: %w", err)
	}
	return nil
}

func (s *FSSink) writeCSV(path string, records []listing.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create csv export: %w", err)
	}
	w := csv.NewWriter(f)
	writeErr := w.Write(listing.CSVHeader())
	for _, rec := range records {
		if writeErr != nil {
			break
		}
		writeErr = w.Write(rec.CSVRow())
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("write csv export: %w", writeErr)
	}
	return nil
}

func (s *FSSink) writeFailed(path string, failed []listing.FailedURL) error {
	var b strings.Builder
	for _, f := range failed {
		b.WriteString(f.URL)
		if f.Reason != "" {
			b.WriteString("\t")
			b.WriteString(f.Reason)
		}
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write failed urls: %w", err)
	}
	return nil
}
