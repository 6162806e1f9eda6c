package publish

import (
	"encoding/json"
	"fmt"
)

// MarshalPlan serializes a plan with stable field names and ordering so
// offline verifiers can diff plans byte for byte.
func MarshalPlan(plan Plan) ([]byte, error) {
	payload := planPayload{
		RunID:        plan.RunID,
		Bucket:       plan.Bucket,
		BucketPrefix: plan.BucketPrefix,
		Entries:      make([]entryPayload, 0, len(plan.Entries)),
	}
	for _, entry := range plan.Entries {
		payload.Entries = append(payload.Entries, entryPayloadFromDomain(entry))
	}
	return json.MarshalIndent(payload, "", "  ")
}

// UnmarshalPlan parses a serialized plan.
func UnmarshalPlan(raw []byte) (Plan, error) {
	var payload planPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	plan := Plan{
		RunID:        payload.RunID,
		Bucket:       payload.Bucket,
		BucketPrefix: payload.BucketPrefix,
		Entries:      make([]Entry, 0, len(payload.Entries)),
	}
	for _, entry := range payload.Entries {
		plan.Entries = append(plan.Entries, entry.toDomain())
	}
	return plan, nil
}

// MarshalResult serializes a publish result for later offline
// verification.
func MarshalResult(result Result) ([]byte, error) {
	payload := resultPayload{
		RunID:   result.RunID,
		Bucket:  result.Bucket,
		DryRun:  result.DryRun,
		Entries: make([]entryResultPayload, 0, len(result.Entries)),
	}
	for _, entry := range result.Entries {
		payload.Entries = append(payload.Entries, entryResultPayload{
			ObjectKey:       entry.ObjectKey,
			ContentHash:     entry.ContentHash,
			IsLatestPointer: entry.IsLatestPointer,
			Outcome:         string(entry.Outcome),
			Error:           entry.Error,
		})
	}
	return json.MarshalIndent(payload, "", "  ")
}

// UnmarshalResult parses a serialized publish result.
func UnmarshalResult(raw []byte) (Result, error) {
	var payload resultPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, fmt.Errorf("decode publish result: %w", err)
	}
	result := Result{
		RunID:   payload.RunID,
		Bucket:  payload.Bucket,
		DryRun:  payload.DryRun,
		Entries: make([]EntryResult, 0, len(payload.Entries)),
	}
	for _, entry := range payload.Entries {
		result.Entries = append(result.Entries, EntryResult{
			ObjectKey:       entry.ObjectKey,
			ContentHash:     entry.ContentHash,
			IsLatestPointer: entry.IsLatestPointer,
			Outcome:         Outcome(entry.Outcome),
			Error:           entry.Error,
		})
	}
	return result, nil
}

type planPayload struct {
	RunID        string         `json:"run_id"`
	Bucket       string         `json:"bucket"`
	BucketPrefix string         `json:"bucket_prefix"`
	Entries      []entryPayload `json:"entries"`
}

type entryPayload struct {
	ObjectKey       string `json:"object_key"`
	RelativePath    string `json:"relative_path"`
	ContentHash     string `json:"content_hash"`
	SizeBytes       int64  `json:"size_bytes"`
	IsLatestPointer bool   `json:"is_latest_pointer"`
}

type resultPayload struct {
	RunID   string               `json:"run_id"`
	Bucket  string               `json:"bucket"`
	DryRun  bool                 `json:"dry_run"`
	Entries []entryResultPayload `json:"entries"`
}

type entryResultPayload struct {
	ObjectKey       string `json:"object_key"`
	ContentHash     string `json:"content_hash"`
	IsLatestPointer bool   `json:"is_latest_pointer"`
	Outcome         string `json:"outcome"`
	Error           string `json:"error,omitempty"`
}

func entryPayloadFromDomain(entry Entry) entryPayload {
	return entryPayload{
		ObjectKey:       entry.ObjectKey,
		RelativePath:    entry.RelativePath,
		ContentHash:     entry.ContentHash,
		SizeBytes:       entry.SizeBytes,
		IsLatestPointer: entry.IsLatestPointer,
	}
}

func (p entryPayload) toDomain() Entry {
	return Entry{
		ObjectKey:       p.ObjectKey,
		RelativePath:    p.RelativePath,
		ContentHash:     p.ContentHash,
		SizeBytes:       p.SizeBytes,
		IsLatestPointer: p.IsLatestPointer,
	}
}
