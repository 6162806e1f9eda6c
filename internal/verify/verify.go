// Package verify confirms that a destination, or a previously captured
// publish result, matches a plan's expectations exactly. It is usable by
// a process that never held the capability to publish.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/platform/objectstore"
	"github.com/jobintel-labs/jobintel-go/internal/publish"
)

// Mismatch identifies one key whose stored content differs from the plan.
type Mismatch struct {
	ObjectKey string
	Expected  string
	Actual    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %s, found %s", m.ObjectKey, m.Expected, m.Actual)
}

// Report lists every expected key by verification outcome. Success
// requires Missing and Mismatched to both be empty; a wrong-content
// object at the right key is a failure, not a pass.
type Report struct {
	Missing    []string
	Mismatched []Mismatch
	Matched    []string
}

func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Online checks every plan entry against a reachable object store,
// comparing existence and exact content hash.
func Online(ctx context.Context, plan publish.Plan, store objectstore.Store) (Report, error) {
	if store == nil {
		return Report{}, errors.New("object store is required for online verification")
	}
	var report Report
	for _, entry := range plan.Entries {
		info, err := store.Stat(ctx, plan.Bucket, entry.ObjectKey)
		switch {
		case errors.Is(err, objectstore.ErrNotFound):
			report.Missing = append(report.Missing, entry.ObjectKey)
		case err != nil:
			return Report{}, fmt.Errorf("stat %s: %w", entry.ObjectKey, err)
		case info.ContentSHA256 != entry.ContentHash:
			report.Mismatched = append(report.Mismatched, Mismatch{
				ObjectKey: entry.ObjectKey,
				Expected:  entry.ContentHash,
				Actual:    info.ContentSHA256,
			})
		default:
			report.Matched = append(report.Matched, entry.ObjectKey)
		}
	}
	return report, nil
}

// Offline checks a plan against a previously serialized publish result,
// with no network access. An entry counts as present when the result
// records it with a non-failed outcome and the planned hash.
func Offline(plan publish.Plan, result publish.Result) (Report, error) {
	recorded := make(map[string]publish.EntryResult, len(result.Entries))
	for _, entry := range result.Entries {
		recorded[entry.ObjectKey] = entry
	}

	var report Report
	for _, entry := range plan.Entries {
		got, ok := recorded[entry.ObjectKey]
		switch {
		case !ok || got.Outcome == publish.OutcomeFailed:
			report.Missing = append(report.Missing, entry.ObjectKey)
		case got.ContentHash != entry.ContentHash:
			report.Mismatched = append(report.Mismatched, Mismatch{
				ObjectKey: entry.ObjectKey,
				Expected:  entry.ContentHash,
				Actual:    got.ContentHash,
			})
		default:
			report.Matched = append(report.Matched, entry.ObjectKey)
		}
	}
	return report, nil
}

// Latest re-derives the expected latest-pointer plan for a run and checks
// only those keys, confirming the run is the published head without
// re-checking historical run-scoped objects.
func Latest(ctx context.Context, rpt domain.RunReport, dest publish.Destination, store objectstore.Store) (Report, error) {
	plan, err := publish.BuildPlan(rpt, dest)
	if err != nil {
		return Report{}, err
	}
	latestOnly := publish.Plan{
		RunID:        plan.RunID,
		Bucket:       plan.Bucket,
		BucketPrefix: plan.BucketPrefix,
		Entries:      plan.LatestEntries(),
	}
	return Online(ctx, latestOnly, store)
}
