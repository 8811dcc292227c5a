package settings_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/warp/attendance-engine/settings"
)

func writeSettings(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, "categories:\n  office:\n    shift_threshold_minutes: 540\n")

	w, err := settings.NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	office, err := w.ForStaffCategory(settings.StaffOffice)
	if err != nil {
		t.Fatal(err)
	}
	if office.ShiftThresholdMinutes != 540 {
		t.Errorf("ShiftThresholdMinutes = %d, want 540", office.ShiftThresholdMinutes)
	}
}

func TestWatcher_RejectsMissingFile(t *testing.T) {
	if _, err := settings.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for a missing settings file")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, "categories:\n  office:\n    shift_threshold_minutes: 480\n")

	w, err := settings.NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	w.DebounceDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx)
	}()

	// Edits before the watch is registered can be missed.
	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never registered its filesystem watch")
	}

	writeSettings(t, path, "categories:\n  office:\n    shift_threshold_minutes: 600\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		office, _ := w.ForStaffCategory(settings.StaffOffice)
		if office.ShiftThresholdMinutes == 600 {
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher did not pick up the new settings in time")
}

func TestWatcher_KeepsPreviousConfigOnBadEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeSettings(t, path, "categories:\n  office:\n    shift_threshold_minutes: 480\n")

	w, err := settings.NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	w.DebounceDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx)
	}()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never registered its filesystem watch")
	}

	// GIVEN an edit that fails validation
	writeSettings(t, path, "categories:\n  office:\n    shift_threshold_minutes: -1\n")

	// THEN the previous snapshot stays active
	time.Sleep(200 * time.Millisecond)
	office, err := w.ForStaffCategory(settings.StaffOffice)
	if err != nil {
		t.Fatal(err)
	}
	if office.ShiftThresholdMinutes != 480 {
		t.Errorf("bad edit replaced the snapshot: threshold = %d", office.ShiftThresholdMinutes)
	}
	cancel()
	<-done
}
