package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookdigest/internal/domain"

	"github.com/google/uuid"
)

const summaryColumns = "id, user_id, file_name, style, content, created_at"

func (d *Database) AddSummary(ctx context.Context, s domain.Summary) (domain.Summary, error) {
	s.UserID = strings.TrimSpace(s.UserID)
	if s.UserID == "" {
		return domain.Summary{}, fmt.Errorf("%w: user ID is empty", ErrInvalid)
	}

	s.Style = strings.TrimSpace(s.Style)
	if s.Style == "" {
		return domain.Summary{}, fmt.Errorf("%w: style is empty", ErrInvalid)
	}

	if strings.TrimSpace(s.Content) == "" {
		return domain.Summary{}, fmt.Errorf("%w: content is empty", ErrInvalid)
	}

	s.FileName = strings.TrimSpace(s.FileName)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := "insert into summaries (" + summaryColumns + ") values (?, ?, ?, ?, ?, ?)"

	if _, err := d.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.FileName, s.Style, s.Content, s.CreatedAt.Unix()); err != nil {
		return domain.Summary{}, fmt.Errorf("insert summary: %w", err)
	}

	s.CreatedAt = time.Unix(s.CreatedAt.Unix(), 0).UTC()

	return s, nil
}

func (d *Database) GetSummary(ctx context.Context, userID, id string) (domain.Summary, error) {
	query := "select " + summaryColumns + " from summaries where id = ? and user_id = ?"

	s, err := scanSummary(d.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Summary{}, ErrNotFound
	}
	if err != nil {
		return domain.Summary{}, fmt.Errorf("select summary: %w", err)
	}

	return s, nil
}

func (d *Database) ListUserSummaries(ctx context.Context, userID string) ([]domain.Summary, error) {
	query := "select " + summaryColumns + " from summaries where user_id = ? order by created_at desc, file_name, style"

	return d.querySummaries(ctx, "ListUserSummaries", query, userID)
}

// ListUnexportedSummaries returns the user's summaries that have no recorded
// Readwise export, oldest first.
func (d *Database) ListUnexportedSummaries(ctx context.Context, userID string) ([]domain.Summary, error) {
	query := `select s.id, s.user_id, s.file_name, s.style, s.content, s.created_at
from summaries s
left join readwise_exports e on e.summary_id = s.id
where s.user_id = ? and e.summary_id is null
order by s.created_at, s.id`

	return d.querySummaries(ctx, "ListUnexportedSummaries", query, userID)
}

// DeleteBook removes every summary of a file together with its shares and
// export records.
func (d *Database) DeleteBook(ctx context.Context, userID, fileName string) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to roll back transaction",
				"error", rollbackErr,
				"userID", userID,
				"operation", "DeleteBook")
		}
	}()

	ids := "select id from summaries where user_id = ? and file_name = ?"

	if _, err = tx.ExecContext(ctx, "delete from shared_summaries where summary_id in ("+ids+")", userID, fileName); err != nil {
		return 0, fmt.Errorf("delete shares: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "delete from readwise_exports where summary_id in ("+ids+")", userID, fileName); err != nil {
		return 0, fmt.Errorf("delete exports: %w", err)
	}

	res, err := tx.ExecContext(ctx, "delete from summaries where user_id = ? and file_name = ?", userID, fileName)
	if err != nil {
		return 0, fmt.Errorf("delete summaries: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return res.RowsAffected()
}

// GetProfile returns the user's profile, or defaults when none is stored.
func (d *Database) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	query := "select user_id, readwise_token, auto_sync, goal, level, focus from user_profiles where user_id = ?"

	p, err := scanProfile(d.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{UserID: userID}, nil
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("select profile: %w", err)
	}

	return p, nil
}

func (d *Database) SetReadwiseToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: Readwise token is empty", ErrInvalid)
	}

	query := `insert into user_profiles (user_id, readwise_token) values (?, ?)
on conflict (user_id) do update set readwise_token = excluded.readwise_token`

	_, err := d.db.ExecContext(ctx, query, userID, token)

	return err
}

// ClearReadwiseToken forgets the token and turns auto-sync off.
func (d *Database) ClearReadwiseToken(ctx context.Context, userID string) error {
	query := "update user_profiles set readwise_token = '', auto_sync = 0 where user_id = ?"

	_, err := d.db.ExecContext(ctx, query, userID)

	return err
}

func (d *Database) SetAutoSync(ctx context.Context, userID string, enabled bool) error {
	query := `insert into user_profiles (user_id, auto_sync) values (?, ?)
on conflict (user_id) do update set auto_sync = excluded.auto_sync`

	_, err := d.db.ExecContext(ctx, query, userID, enabled)

	return err
}

func (d *Database) ListAutoSyncUsers(ctx context.Context) ([]domain.UserProfile, error) {
	query := `select user_id, readwise_token, auto_sync, goal, level, focus
from user_profiles
where auto_sync = 1 and readwise_token != ''
order by user_id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListAutoSyncUsers")
		}
	}()

	var profiles []domain.UserProfile
	for rows.Next() {
		p, scanErr := scanProfile(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}
		profiles = append(profiles, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return profiles, nil
}

// CreateShare snapshots a summary under a random token. Sharing the same
// summary again returns the existing share.
func (d *Database) CreateShare(ctx context.Context, userID, summaryID string) (domain.Share, error) {
	existing, err := d.shareBySummary(ctx, summaryID)
	if err == nil && existing.UserID == userID {
		return existing, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Share{}, err
	}

	s, err := d.GetSummary(ctx, userID, summaryID)
	if err != nil {
		return domain.Share{}, err
	}

	share := domain.Share{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		SummaryID: s.ID,
		UserID:    s.UserID,
		FileName:  s.FileName,
		Style:     s.Style,
		Content:   s.Content,
		CreatedAt: time.Unix(time.Now().Unix(), 0).UTC(),
	}

	query := `insert into shared_summaries (token, summary_id, user_id, file_name, style, content, created_at)
values (?, ?, ?, ?, ?, ?, ?)`

	if _, err = d.db.ExecContext(ctx, query,
		share.Token, share.SummaryID, share.UserID, share.FileName, share.Style, share.Content, share.CreatedAt.Unix()); err != nil {
		return domain.Share{}, fmt.Errorf("insert share: %w", err)
	}

	return share, nil
}

func (d *Database) GetShare(ctx context.Context, token string) (domain.Share, error) {
	query := "select token, summary_id, user_id, file_name, style, content, created_at from shared_summaries where token = ?"

	share, err := scanShare(d.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Share{}, ErrNotFound
	}
	if err != nil {
		return domain.Share{}, fmt.Errorf("select share: %w", err)
	}

	return share, nil
}

func (d *Database) shareBySummary(ctx context.Context, summaryID string) (domain.Share, error) {
	query := "select token, summary_id, user_id, file_name, style, content, created_at from shared_summaries where summary_id = ?"

	share, err := scanShare(d.db.QueryRowContext(ctx, query, summaryID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Share{}, ErrNotFound
	}
	if err != nil {
		return domain.Share{}, fmt.Errorf("select share: %w", err)
	}

	return share, nil
}

func (d *Database) RecordExport(ctx context.Context, e domain.Export) error {
	if e.ExportedAt.IsZero() {
		e.ExportedAt = time.Now().UTC()
	}

	query := `insert into readwise_exports (summary_id, user_id, highlight_count, exported_at) values (?, ?, ?, ?)
on conflict (summary_id) do update set highlight_count = excluded.highlight_count, exported_at = excluded.exported_at`

	_, err := d.db.ExecContext(ctx, query, e.SummaryID, e.UserID, e.HighlightCount, e.ExportedAt.Unix())

	return err
}

func (d *Database) querySummaries(ctx context.Context, operation, query string, args ...any) ([]domain.Summary, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", operation)
		}
	}()

	var summaries []domain.Summary
	for rows.Next() {
		s, scanErr := scanSummary(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}
		summaries = append(summaries, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (domain.Summary, error) {
	var (
		s         domain.Summary
		createdAt int64
	)

	if err := row.Scan(&s.ID, &s.UserID, &s.FileName, &s.Style, &s.Content, &createdAt); err != nil {
		return domain.Summary{}, err
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	return s, nil
}

func scanProfile(row scanner) (domain.UserProfile, error) {
	var p domain.UserProfile

	if err := row.Scan(&p.UserID, &p.ReadwiseToken, &p.AutoSync, &p.Goal, &p.Level, &p.Focus); err != nil {
		return domain.UserProfile{}, err
	}

	return p, nil
}

func scanShare(row scanner) (domain.Share, error) {
	var (
		s         domain.Share
		createdAt int64
	)

	if err := row.Scan(&s.Token, &s.SummaryID, &s.UserID, &s.FileName, &s.Style, &s.Content, &createdAt); err != nil {
		return domain.Share{}, err
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	return s, nil
}
