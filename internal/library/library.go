// Package library ties stored summaries to their parsed documents and to
// Readwise export.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"bookdigest/internal/domain"
	"bookdigest/internal/readwise"
	"bookdigest/internal/render"
	"bookdigest/internal/summary"
)

const syncUsersMaxConcurrencyGrowthFactor = 4

type Store interface {
	GetSummary(ctx context.Context, userID, id string) (domain.Summary, error)
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	ListAutoSyncUsers(ctx context.Context) ([]domain.UserProfile, error)
	ListUnexportedSummaries(ctx context.Context, userID string) ([]domain.Summary, error)
	RecordExport(ctx context.Context, e domain.Export) error
}

type Exporter interface {
	Export(ctx context.Context, token string, highlights []render.Highlight) (int, error)
}

type Library struct {
	store    Store
	cache    *summary.Cache
	renderer *render.Renderer
	exporter Exporter
	log      *slog.Logger
}

func New(
	store Store,
	cache *summary.Cache,
	renderer *render.Renderer,
	exporter Exporter,
	log *slog.Logger,
) *Library {
	if renderer == nil {
		renderer = render.New(nil)
	}

	return &Library{
		store:    store,
		cache:    cache,
		renderer: renderer,
		exporter: exporter,
		log:      log,
	}
}

func (l *Library) Renderer() *render.Renderer {
	return l.renderer
}

// Document parses a stored summary. Coerced values are logged.
func (l *Library) Document(ctx context.Context, s domain.Summary) (*summary.Document, error) {
	doc, err := l.cache.Parse(s.Style, s.Content)
	if err != nil {
		return nil, err
	}

	for _, c := range doc.Coercions {
		l.log.WarnContext(ctx, "Coerced summary value",
			"summaryID", s.ID,
			"field", c.Key,
			"index", c.Index,
			"kind", c.Kind,
			"raw", c.Raw)
	}

	return doc, nil
}

// Open loads one of the user's summaries and parses it. The summary is
// returned even when parsing fails so callers can fall back to raw content.
func (l *Library) Open(ctx context.Context, userID, id string) (domain.Summary, *summary.Document, error) {
	s, err := l.store.GetSummary(ctx, userID, id)
	if err != nil {
		return domain.Summary{}, nil, err
	}

	doc, err := l.Document(ctx, s)
	if err != nil {
		return s, nil, err
	}

	return s, doc, nil
}

// ExportReadwise sends one summary's highlights to the user's Readwise
// account and records the export.
func (l *Library) ExportReadwise(ctx context.Context, userID, summaryID string) (int, error) {
	profile, err := l.store.GetProfile(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	if !profile.HasReadwise() {
		return 0, readwise.ErrMissingToken
	}

	s, doc, err := l.Open(ctx, userID, summaryID)
	if err != nil {
		return 0, err
	}

	return l.export(ctx, profile, s, doc)
}

func (l *Library) export(
	ctx context.Context,
	profile domain.UserProfile,
	s domain.Summary,
	doc *summary.Document,
) (int, error) {
	highlights, err := l.renderer.Highlights(doc, s.FileName)
	if err != nil {
		return 0, fmt.Errorf("render highlights: %w", err)
	}

	count, err := l.exporter.Export(ctx, profile.ReadwiseToken, highlights)
	if err != nil {
		return 0, err
	}

	if err = l.store.RecordExport(ctx, domain.Export{
		SummaryID:      s.ID,
		UserID:         s.UserID,
		HighlightCount: count,
		ExportedAt:     time.Now().UTC(),
	}); err != nil {
		return count, fmt.Errorf("record export: %w", err)
	}

	return count, nil
}

type SyncReport struct {
	Users      int
	Summaries  int
	Highlights int
}

// SyncAll exports every not yet exported summary of each auto-sync user.
// A user whose token is rejected is skipped until the token changes.
func (l *Library) SyncAll(ctx context.Context) (SyncReport, error) {
	profiles, err := l.store.ListAutoSyncUsers(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("list auto-sync users: %w", err)
	}
	if len(profiles) == 0 {
		return SyncReport{}, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = SyncReport{Users: len(profiles)}
		errs   []error
	)

	concurrency := min(runtime.NumCPU()*syncUsersMaxConcurrencyGrowthFactor, len(profiles))
	semCh := make(chan struct{}, concurrency)

	for _, profile := range profiles {
		wg.Add(1)
		semCh <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-semCh }()

			summaries, highlights, syncErr := l.syncUser(ctx, profile)

			mu.Lock()
			defer mu.Unlock()

			report.Summaries += summaries
			report.Highlights += highlights
			if syncErr != nil {
				errs = append(errs, fmt.Errorf("sync user %s: %w", profile.UserID, syncErr))
			}
		}()
	}

	wg.Wait()

	return report, errors.Join(errs...)
}

func (l *Library) syncUser(ctx context.Context, profile domain.UserProfile) (int, int, error) {
	summaries, err := l.store.ListUnexportedSummaries(ctx, profile.UserID)
	if err != nil {
		return 0, 0, fmt.Errorf("list unexported summaries: %w", err)
	}

	var (
		exported   int
		highlights int
		errs       []error
	)

	for _, s := range summaries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		doc, docErr := l.Document(ctx, s)
		if docErr != nil {
			l.log.WarnContext(ctx, "Skipping unparseable summary",
				"error", docErr,
				"userID", profile.UserID,
				"summaryID", s.ID)
			continue
		}

		count, exportErr := l.export(ctx, profile, s, doc)
		switch {
		case exportErr == nil:
			exported++
			highlights += count
		case errors.Is(exportErr, readwise.ErrNothingToExport):
			if recordErr := l.store.RecordExport(ctx, domain.Export{
				SummaryID: s.ID,
				UserID:    s.UserID,
			}); recordErr != nil {
				errs = append(errs, fmt.Errorf("record empty export: %w", recordErr))
			}
		case errors.Is(exportErr, readwise.ErrInvalidToken):
			l.log.WarnContext(ctx, "Readwise token rejected, skipping user",
				"userID", profile.UserID)
			return exported, highlights, errors.Join(errs...)
		default:
			errs = append(errs, fmt.Errorf("export summary %s: %w", s.ID, exportErr))
		}
	}

	return exported, highlights, errors.Join(errs...)
}
