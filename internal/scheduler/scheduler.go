package scheduler

import (
	"context"
	"log/slog"
	"time"

	"bookdigest/internal/library"

	"github.com/robfig/cron/v3"
)

const (
	DefaultAutoSyncSpec   = "30 3 * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	autoSyncTimeout       = 30 * time.Minute
)

type Syncer interface {
	SyncAll(ctx context.Context) (library.SyncReport, error)
}

type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	spec   string
	syncer Syncer
	log    *slog.Logger
}

func New(ctx context.Context, spec string, syncer Syncer, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultAutoSyncSpec
	}

	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		spec:   spec,
		syncer: syncer,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.autoSync); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the schedule and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) autoSync() {
	ctx, cancel := context.WithTimeout(s.ctx, autoSyncTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	startedAt := time.Now()

	report, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to sync some summaries to Readwise",
			"error", err,
			"users", report.Users,
			"summaries", report.Summaries)
	}

	s.log.InfoContext(ctx, "Readwise auto-sync finished",
		"users", report.Users,
		"summaries", report.Summaries,
		"highlights", report.Highlights,
		"duration", time.Since(startedAt))
}
