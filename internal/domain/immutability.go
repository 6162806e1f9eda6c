package domain

import (
	"errors"
	"fmt"
	"reflect"
)

// EnsureRunReportImmutable enforces immutability for finalized run reports.
// A report may only gain its integrity hash after finalization; everything
// else is frozen.
func EnsureRunReportImmutable(before, after RunReport) error {
	if before.RunID == "" || after.RunID == "" {
		return errors.New("run ids are required")
	}
	if before.RunID != after.RunID {
		return fmt.Errorf("run id changed from %q to %q", before.RunID, after.RunID)
	}
	if before.Mode != after.Mode {
		return errors.New("mode is immutable")
	}
	if before.Accepted != after.Accepted {
		return errors.New("accepted is immutable")
	}
	if !before.StartedAt.Equal(after.StartedAt) {
		return errors.New("started at is immutable")
	}
	if !before.FinishedAt.Equal(after.FinishedAt) {
		return errors.New("finished at is immutable")
	}
	if !reflect.DeepEqual(before.ProviderMetrics, after.ProviderMetrics) {
		return errors.New("provider metrics are immutable")
	}
	if !reflect.DeepEqual(before.Artifacts, after.Artifacts) {
		return errors.New("artifacts are immutable")
	}
	if !reflect.DeepEqual(before.DecisionTrace, after.DecisionTrace) {
		return errors.New("decision trace is immutable")
	}
	if before.IntegritySHA256 != "" && before.IntegritySHA256 != after.IntegritySHA256 {
		return errors.New("integrity sha256 is immutable")
	}
	return nil
}
