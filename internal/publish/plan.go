// Package publish maps accepted run reports to content-addressed object
// store layouts and realizes them with a latest-pointer barrier.
package publish

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

// ErrInvalidInput rejects planning for runs that must never be published:
// unaccepted runs and runs without artifacts.
var ErrInvalidInput = errors.New("run is not publishable")

// Destination describes where a run's artifacts land.
type Destination struct {
	Bucket   string
	Prefix   string
	Provider string
	Profile  string
}

func (d Destination) Validate() error {
	if strings.TrimSpace(d.Bucket) == "" {
		return errors.New("destination bucket is required")
	}
	if strings.TrimSpace(d.Prefix) == "" {
		return errors.New("destination prefix is required")
	}
	if strings.TrimSpace(d.Provider) == "" {
		return errors.New("destination provider is required")
	}
	if strings.TrimSpace(d.Profile) == "" {
		return errors.New("destination profile is required")
	}
	return nil
}

// Entry is one planned object write.
type Entry struct {
	ObjectKey string
	// RelativePath locates the artifact body in the local staging area.
	RelativePath    string
	ContentHash     string
	SizeBytes       int64
	IsLatestPointer bool
}

// Plan is the deterministic set of writes a publish must produce. The
// same report and destination always yield a byte-identical serialized
// plan; nothing here touches the network.
type Plan struct {
	RunID        string
	Bucket       string
	BucketPrefix string
	Entries      []Entry
}

// RunEntries returns the immutable run-scoped half of the plan.
func (p Plan) RunEntries() []Entry {
	out := make([]Entry, 0, len(p.Entries)/2)
	for _, e := range p.Entries {
		if !e.IsLatestPointer {
			out = append(out, e)
		}
	}
	return out
}

// LatestEntries returns the latest-pointer half of the plan.
func (p Plan) LatestEntries() []Entry {
	out := make([]Entry, 0, len(p.Entries)/2)
	for _, e := range p.Entries {
		if e.IsLatestPointer {
			out = append(out, e)
		}
	}
	return out
}

// BuildPlan computes the object keys and checksums for an accepted run.
// Entries follow artifact order, each run entry immediately followed by
// its latest-pointer mirror; that ordering is part of the determinism
// contract.
func BuildPlan(rpt domain.RunReport, dest Destination) (Plan, error) {
	if err := dest.Validate(); err != nil {
		return Plan{}, err
	}
	if err := rpt.Validate(); err != nil {
		return Plan{}, err
	}
	if !rpt.Accepted {
		return Plan{}, fmt.Errorf("%w: run %s was rejected", ErrInvalidInput, rpt.RunID)
	}
	if len(rpt.Artifacts) == 0 {
		return Plan{}, fmt.Errorf("%w: run %s has no artifacts", ErrInvalidInput, rpt.RunID)
	}

	prefix := strings.Trim(dest.Prefix, "/")
	runBase := path.Join(prefix, "runs", rpt.RunID, dest.Provider, dest.Profile)
	latestBase := path.Join(prefix, "latest", dest.Provider, dest.Profile)

	entries := make([]Entry, 0, 2*len(rpt.Artifacts))
	for _, artifact := range rpt.Artifacts {
		entries = append(entries, Entry{
			ObjectKey:    path.Join(runBase, artifact.RelativePath),
			RelativePath: artifact.RelativePath,
			ContentHash:  artifact.ContentHash,
			SizeBytes:    artifact.SizeBytes,
		})
		entries = append(entries, Entry{
			ObjectKey:       path.Join(latestBase, artifact.RelativePath),
			RelativePath:    artifact.RelativePath,
			ContentHash:     artifact.ContentHash,
			SizeBytes:       artifact.SizeBytes,
			IsLatestPointer: true,
		})
	}

	return Plan{
		RunID:        rpt.RunID,
		Bucket:       dest.Bucket,
		BucketPrefix: runBase,
		Entries:      entries,
	}, nil
}
