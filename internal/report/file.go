package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

// FileName is the canonical name of the durable local record.
const FileName = "run_report.json"

// Write persists a report atomically: write to a temp file in the target
// directory, then rename over the destination. When the destination
// already holds the same run's report, the rewrite must be immutable;
// only the integrity hash may be gained. A different run id replaces the
// previous record outright.
func Write(path string, rpt domain.RunReport) error {
	blob, err := Marshal(rpt)
	if err != nil {
		return err
	}
	if existing, err := Read(path); err == nil && existing.RunID == rpt.RunID {
		if err := domain.EnsureRunReportImmutable(existing, rpt); err != nil {
			return fmt.Errorf("rewrite %s: %w", path, err)
		}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(blob, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize report: %w", err)
	}
	return nil
}

// Read loads a persisted report.
func Read(path string) (domain.RunReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("read report: %w", err)
	}
	return Unmarshal(raw)
}
