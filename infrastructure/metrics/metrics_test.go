package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveBeforeInitIsNoop(t *testing.T) {
	if reconcileTotal != nil {
		t.Skip("metrics already initialised by another test")
	}
	ObserveReconcile(ResultSuccess, time.Millisecond)
	ObserveBatch(ResultSuccess, 1, 0, time.Millisecond)
	IncClockWrite("advance")
	IncProjection("set")
}

func TestObserveCountsByResult(t *testing.T) {
	Init(nil, nil)
	Init(nil, nil)

	before := testutil.ToFloat64(reconcileTotal.WithLabelValues(ResultGap))
	ObserveReconcile(ResultGap, 5*time.Millisecond)
	if got := testutil.ToFloat64(reconcileTotal.WithLabelValues(ResultGap)); got != before+1 {
		t.Fatalf("expected gap counter %v, got %v", before+1, got)
	}

	ObserveBatch(ResultSuccess, 4, 2, time.Second)
	if got := testutil.ToFloat64(batchLastFailures); got != 2 {
		t.Fatalf("expected last failures 2, got %v", got)
	}

	clockBefore := testutil.ToFloat64(clockWritesTotal.WithLabelValues("unknown"))
	IncClockWrite("")
	if got := testutil.ToFloat64(clockWritesTotal.WithLabelValues("unknown")); got != clockBefore+1 {
		t.Fatalf("expected unknown clock op counted, got %v", got)
	}
}
