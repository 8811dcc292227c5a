package violation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/attendance-engine/geo"
	"github.com/warp/attendance-engine/violation"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSink struct {
	records []violation.Violation
	fail    error
}

func (s *fakeSink) Record(_ context.Context, v violation.Violation) error {
	if s.fail != nil {
		return s.fail
	}
	s.records = append(s.records, v)
	return nil
}

func (s *fakeSink) ListForMonth(context.Context, string, time.Time) ([]violation.Violation, error) {
	return s.records, nil
}

type recordingNotifier struct {
	kinds    []string
	payloads []map[string]any
}

func (n *recordingNotifier) Dispatch(_ context.Context, kind string, payload map[string]any) {
	n.kinds = append(n.kinds, kind)
	n.payloads = append(n.payloads, payload)
}

// =============================================================================
// TESTS
// =============================================================================

func TestLogViolation_RecordsAndNotifies(t *testing.T) {
	sink := &fakeSink{}
	notifier := &recordingNotifier{}
	now := time.Date(2026, time.March, 2, 14, 30, 0, 0, time.UTC)
	l := &violation.Logger{Sink: sink, Notifier: notifier, Now: func() time.Time { return now }}

	v, err := l.LogViolation(context.Background(), "alice",
		geo.Fix{Latitude: 13.1, Longitude: 77.8}, "MG Road, Bengaluru")
	if err != nil {
		t.Fatal(err)
	}

	if v.ID == "" {
		t.Error("violation should carry a generated ID")
	}
	if v.ViolationMonth != "2026-03" {
		t.Errorf("ViolationMonth = %q, want 2026-03", v.ViolationMonth)
	}
	if v.LocationName != "MG Road, Bengaluru" {
		t.Errorf("LocationName = %q", v.LocationName)
	}
	if len(sink.records) != 1 {
		t.Fatalf("sink has %d records, want 1", len(sink.records))
	}

	if len(notifier.kinds) != 1 || notifier.kinds[0] != violation.EventKindGeofenceViolation {
		t.Fatalf("dispatched kinds = %v", notifier.kinds)
	}
	payload := notifier.payloads[0]
	if payload["actor"] != "alice" {
		t.Errorf("payload actor = %v", payload["actor"])
	}
	if payload["location"] != "MG Road, Bengaluru" {
		t.Errorf("payload location = %v", payload["location"])
	}
}

func TestLogViolation_SinkFailurePropagatesAndSkipsNotification(t *testing.T) {
	// The audit record is authoritative: no record, no notification.
	sink := &fakeSink{fail: errors.New("disk full")}
	notifier := &recordingNotifier{}
	l := &violation.Logger{Sink: sink, Notifier: notifier}

	_, err := l.LogViolation(context.Background(), "alice", geo.Fix{}, "somewhere")
	if err == nil {
		t.Fatal("expected sink failure to propagate")
	}
	if len(notifier.kinds) != 0 {
		t.Errorf("notification dispatched despite failed record: %v", notifier.kinds)
	}
}

func TestLogViolation_NilNotifierIsAllowed(t *testing.T) {
	sink := &fakeSink{}
	l := &violation.Logger{Sink: sink}

	if _, err := l.LogViolation(context.Background(), "alice", geo.Fix{}, "somewhere"); err != nil {
		t.Fatal(err)
	}
	if len(sink.records) != 1 {
		t.Errorf("sink has %d records, want 1", len(sink.records))
	}
}

func TestLogViolation_NoDedupAcrossPunches(t *testing.T) {
	// One out-of-zone punch, one record. Three punches, three records.
	sink := &fakeSink{}
	l := &violation.Logger{Sink: sink}

	for i := 0; i < 3; i++ {
		if _, err := l.LogViolation(context.Background(), "alice", geo.Fix{}, "somewhere"); err != nil {
			t.Fatal(err)
		}
	}
	if len(sink.records) != 3 {
		t.Errorf("sink has %d records, want 3", len(sink.records))
	}
}
