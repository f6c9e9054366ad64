package monitor

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHitRatio(t *testing.T) {
	ws := NewWorkloadStats()
	if ws.GetHitRatio() != 0 {
		t.Fatalf("expected 0 ratio without lookups")
	}
	ws.RecordLookup(true)
	ws.RecordLookup(false)
	ws.RecordLookup(true)
	ws.RecordLookup(true)
	if got := ws.GetHitRatio(); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	if got := testutil.ToFloat64(ws.lookups.WithLabelValues("miss")); got != 1 {
		t.Fatalf("expected 1 miss, got %v", got)
	}
}

func TestRecordLoad(t *testing.T) {
	ws := NewWorkloadStats()
	ws.RecordLoad(nil)
	ws.RecordIndex(12, 5)
	ws.RecordLoad(errors.New("boom"))

	if got := testutil.ToFloat64(ws.records); got != 12 {
		t.Fatalf("expected records gauge 12, got %v", got)
	}
	if got := testutil.ToFloat64(ws.treeHeight); got != 5 {
		t.Fatalf("expected height gauge 5, got %v", got)
	}
	if got := testutil.ToFloat64(ws.loads.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed load, got %v", got)
	}
	if ws.LoadCount != 1 {
		t.Fatalf("expected 1 successful load, got %d", ws.LoadCount)
	}
}

func TestRecordIndexAfterFailedLoad(t *testing.T) {
	ws := NewWorkloadStats()
	ws.RecordLoad(errors.New("dangling prerequisite"))
	ws.RecordIndex(3, 2)

	if got := testutil.ToFloat64(ws.records); got != 3 {
		t.Fatalf("expected records gauge 3, got %v", got)
	}
	if got := testutil.ToFloat64(ws.loads.WithLabelValues("ok")); got != 0 {
		t.Fatalf("expected no successful load, got %v", got)
	}
}
