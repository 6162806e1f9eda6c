package runid

import (
	"sort"
	"testing"
	"time"
)

func TestNewSortsByTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{
		New(base.Add(2 * time.Hour)),
		New(base),
		New(base.Add(time.Hour)),
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	if sorted[0] != ids[1] || sorted[1] != ids[2] || sorted[2] != ids[0] {
		t.Fatalf("ids do not sort chronologically: %v", ids)
	}
}

func TestParse(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := New(at)
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	if got.Sub(at) > time.Millisecond || at.Sub(got) > time.Millisecond {
		t.Fatalf("Parse()=%v want %v", got, at)
	}
	if _, err := Parse("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}
