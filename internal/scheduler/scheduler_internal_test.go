package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"bookdigest/internal/library"
)

type countingSyncer struct {
	calls int
	err   error
}

func (s *countingSyncer) SyncAll(context.Context) (library.SyncReport, error) {
	s.calls++
	return library.SyncReport{Users: 1}, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAutoSyncRunsSyncer(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("boom")}
	s := New(context.Background(), "", syncer, discardLogger())

	s.autoSync()

	if syncer.calls != 1 {
		t.Fatalf("unexpected sync calls: %d", syncer.calls)
	}
	if s.spec != DefaultAutoSyncSpec {
		t.Fatalf("unexpected spec: %q", s.spec)
	}
}

func TestAutoSyncSkipsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := &countingSyncer{}
	New(ctx, "", syncer, discardLogger()).autoSync()

	if syncer.calls != 0 {
		t.Fatalf("unexpected sync calls: %d", syncer.calls)
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(context.Background(), "not a spec", &countingSyncer{}, discardLogger())

	if err := s.Start(); err == nil {
		s.Stop()
		t.Fatalf("expected an error for an invalid spec")
	}
}

func TestStartStop(t *testing.T) {
	s := New(context.Background(), "0 * * * *", &countingSyncer{}, discardLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
