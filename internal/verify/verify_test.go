package verify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/platform/objectstore"
	"github.com/jobintel-labs/jobintel-go/internal/publish"
)

type mapSource map[string]string

func (s mapSource) Open(relativePath string) (io.ReadCloser, error) {
	body, ok := s[relativePath]
	if !ok {
		return nil, errors.New("no such artifact: " + relativePath)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func testDestination() publish.Destination {
	return publish.Destination{
		Bucket:   "jobintel",
		Prefix:   "jobintel",
		Provider: "boardfeed",
		Profile:  "default",
	}
}

func acceptedReport() domain.RunReport {
	return domain.RunReport{
		RunID:     "01JN0000000000000000000000",
		Mode:      domain.ModeSnapshot,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Artifacts: []domain.Artifact{
			{RelativePath: "jobs.jsonl", ContentHash: "aaa", SizeBytes: 4},
			{RelativePath: "summary.json", ContentHash: "bbb", SizeBytes: 7},
		},
		Accepted: true,
	}
}

func publishedStore(t *testing.T) (publish.Plan, *objectstore.MemoryStore) {
	t.Helper()
	plan, err := publish.BuildPlan(acceptedReport(), testDestination())
	if err != nil {
		t.Fatalf("BuildPlan() err=%v", err)
	}
	store := objectstore.NewMemoryStore()
	source := mapSource{"jobs.jsonl": "jobs", "summary.json": "summary"}
	if _, err := publish.NewPublisher(store, source).Publish(context.Background(), plan, false); err != nil {
		t.Fatalf("Publish() err=%v", err)
	}
	return plan, store
}

func TestOnlineRoundTrip(t *testing.T) {
	plan, store := publishedStore(t)

	report, err := Online(context.Background(), plan, store)
	if err != nil {
		t.Fatalf("Online() err=%v", err)
	}
	if !report.OK() {
		t.Fatalf("report=%+v", report)
	}
	if len(report.Matched) != len(plan.Entries) {
		t.Fatalf("matched=%d want %d", len(report.Matched), len(plan.Entries))
	}
}

func TestOnlineDetectsMissing(t *testing.T) {
	plan, _ := publishedStore(t)

	report, err := Online(context.Background(), plan, objectstore.NewMemoryStore())
	if err != nil {
		t.Fatalf("Online() err=%v", err)
	}
	if report.OK() {
		t.Fatalf("empty store passed verification")
	}
	if len(report.Missing) != len(plan.Entries) {
		t.Fatalf("missing=%d", len(report.Missing))
	}
}

func TestOnlineDetectsMismatch(t *testing.T) {
	plan, store := publishedStore(t)

	// overwrite one key with wrong content
	key := plan.Entries[0].ObjectKey
	if err := store.Put(context.Background(), plan.Bucket, key, strings.NewReader("tampered"), 8, "zzz"); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	report, err := Online(context.Background(), plan, store)
	if err != nil {
		t.Fatalf("Online() err=%v", err)
	}
	if report.OK() {
		t.Fatalf("tampered store passed verification")
	}
	if len(report.Mismatched) != 1 || report.Mismatched[0].ObjectKey != key {
		t.Fatalf("mismatched=%+v", report.Mismatched)
	}
	if report.Mismatched[0].Expected != "aaa" || report.Mismatched[0].Actual != "zzz" {
		t.Fatalf("mismatch detail=%+v", report.Mismatched[0])
	}
}

func TestOfflineAgainstDryRunResult(t *testing.T) {
	plan, err := publish.BuildPlan(acceptedReport(), testDestination())
	if err != nil {
		t.Fatalf("BuildPlan() err=%v", err)
	}
	result, err := publish.NewPublisher(nil, nil).Publish(context.Background(), plan, true)
	if err != nil {
		t.Fatalf("Publish() err=%v", err)
	}

	// serialize and parse back, as the offline verifier process would
	blob, err := publish.MarshalResult(result)
	if err != nil {
		t.Fatalf("MarshalResult() err=%v", err)
	}
	parsed, err := publish.UnmarshalResult(blob)
	if err != nil {
		t.Fatalf("UnmarshalResult() err=%v", err)
	}

	report, err := Offline(plan, parsed)
	if err != nil {
		t.Fatalf("Offline() err=%v", err)
	}
	if !report.OK() {
		t.Fatalf("report=%+v", report)
	}
}

func TestOfflineDetectsFailedEntries(t *testing.T) {
	plan, err := publish.BuildPlan(acceptedReport(), testDestination())
	if err != nil {
		t.Fatalf("BuildPlan() err=%v", err)
	}
	result, err := publish.NewPublisher(nil, nil).Publish(context.Background(), plan, true)
	if err != nil {
		t.Fatalf("Publish() err=%v", err)
	}
	result.Entries[1].Outcome = publish.OutcomeFailed

	report, err := Offline(plan, result)
	if err != nil {
		t.Fatalf("Offline() err=%v", err)
	}
	if report.OK() {
		t.Fatalf("failed entry passed verification")
	}
	if len(report.Missing) != 1 || report.Missing[0] != result.Entries[1].ObjectKey {
		t.Fatalf("missing=%v", report.Missing)
	}
}

func TestLatestChecksOnlyPointerKeys(t *testing.T) {
	_, store := publishedStore(t)

	report, err := Latest(context.Background(), acceptedReport(), testDestination(), store)
	if err != nil {
		t.Fatalf("Latest() err=%v", err)
	}
	if !report.OK() {
		t.Fatalf("report=%+v", report)
	}
	if len(report.Matched) != 2 {
		t.Fatalf("matched=%d want 2", len(report.Matched))
	}
	for _, key := range report.Matched {
		if !strings.Contains(key, "/latest/") {
			t.Fatalf("non-latest key checked: %s", key)
		}
	}
}

func TestLatestDetectsSupersededRun(t *testing.T) {
	_, store := publishedStore(t)

	// a newer run overwrites the latest pointers
	newer := acceptedReport()
	newer.RunID = "01JN0000000000000000000001"
	for i := range newer.Artifacts {
		newer.Artifacts[i].ContentHash = "new-" + newer.Artifacts[i].ContentHash
		newer.Artifacts[i].SizeBytes++ // bodies below are one byte longer
	}
	newerPlan, err := publish.BuildPlan(newer, testDestination())
	if err != nil {
		t.Fatalf("BuildPlan() err=%v", err)
	}
	source := mapSource{"jobs.jsonl": "jobs2", "summary.json": "summary2"}
	if _, err := publish.NewPublisher(store, source).Publish(context.Background(), newerPlan, false); err != nil {
		t.Fatalf("Publish() err=%v", err)
	}

	// the old run is no longer the published head
	report, err := Latest(context.Background(), acceptedReport(), testDestination(), store)
	if err != nil {
		t.Fatalf("Latest() err=%v", err)
	}
	if report.OK() {
		t.Fatalf("superseded run still verifies as latest")
	}
	if len(report.Mismatched) != 2 {
		t.Fatalf("mismatched=%+v", report.Mismatched)
	}
}
