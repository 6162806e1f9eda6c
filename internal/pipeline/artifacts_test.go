package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"
)

func TestCollectArtifactsDeterministic(t *testing.T) {
	root := stageFiles(t, map[string]string{
		"summary.json":         "summary",
		"jobs.jsonl":           "jobs",
		"meta/provenance.json": "provenance",
	})

	first, err := CollectArtifacts(root)
	if err != nil {
		t.Fatalf("CollectArtifacts() err=%v", err)
	}
	second, err := CollectArtifacts(root)
	if err != nil {
		t.Fatalf("CollectArtifacts() err=%v", err)
	}

	wantPaths := []string{"jobs.jsonl", "meta/provenance.json", "summary.json"}
	if len(first) != len(wantPaths) {
		t.Fatalf("artifacts=%d, want %d", len(first), len(wantPaths))
	}
	for i, want := range wantPaths {
		if first[i].RelativePath != want {
			t.Fatalf("artifact[%d]=%q, want %q", i, first[i].RelativePath, want)
		}
		if first[i].RelativePath != second[i].RelativePath || first[i].ContentHash != second[i].ContentHash {
			t.Fatalf("walk is not deterministic at %d", i)
		}
	}

	sum := sha256.Sum256([]byte("jobs"))
	if first[0].ContentHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("hash=%s", first[0].ContentHash)
	}
	if first[0].SizeBytes != int64(len("jobs")) {
		t.Fatalf("size=%d", first[0].SizeBytes)
	}
}

func TestCollectArtifactsMissingRoot(t *testing.T) {
	if _, err := CollectArtifacts(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing staging dir")
	}
}

func TestReadMetrics(t *testing.T) {
	dir := stageFiles(t, map[string]string{
		"metrics.json": `{"jobs_collected": 120, "errors": 3, "snapshot_fallback_ratio": 0.05}`,
		"broken.json":  `{"jobs_collected": -1}`,
	})

	metrics, err := ReadMetrics(filepath.Join(dir, "metrics.json"))
	if err != nil {
		t.Fatalf("ReadMetrics() err=%v", err)
	}
	if metrics.JobsCollected != 120 || metrics.Errors != 3 {
		t.Fatalf("metrics=%+v", metrics)
	}
	if metrics.AttemptsUsed != 1 {
		t.Fatalf("AttemptsUsed=%d, want floor of 1", metrics.AttemptsUsed)
	}

	if _, err := ReadMetrics(filepath.Join(dir, "broken.json")); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := ReadMetrics(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatalf("expected read error")
	}
}
