package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // Postgres driver

	"github.com/user/forumbot/internal/types"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Default table names for the two logs.
const (
	DefaultClaimTable     = "ai_processing_log"
	DefaultExecutionTable = "ai_execution_logs"
)

// PGStore implements ContentStore, ClaimLog and ExecutionLog on Postgres.
type PGStore struct {
	db             *sql.DB
	claimTable     string
	executionTable string
}

// NewPGStore wraps an open database. Empty table names fall back to the
// defaults.
func NewPGStore(db *sql.DB, claimTable, executionTable string) *PGStore {
	if claimTable == "" {
		claimTable = DefaultClaimTable
	}
	if executionTable == "" {
		executionTable = DefaultExecutionTable
	}
	return &PGStore{
		db:             db,
		claimTable:     pq.QuoteIdentifier(claimTable),
		executionTable: pq.QuoteIdentifier(executionTable),
	}
}

// OpenPostgres opens and pings a connection pool for dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Close closes the underlying pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Content reads.

func (s *PGStore) Profile(ctx context.Context, userID string) (*types.Profile, error) {
	var p types.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(username, '') FROM profiles WHERE id = $1`, userID,
	).Scan(&p.ID, &p.Username)
	if err != nil {
		return nil, notFound(err, "query profile")
	}
	return &p, nil
}

func (s *PGStore) RecentPostsByAuthor(ctx context.Context, authorID string, limit int) ([]types.PostSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(title, ''), COALESCE(tags, '{}') FROM posts
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var out []types.PostSummary
	for rows.Next() {
		var p types.PostSummary
		if err := rows.Scan(&p.ID, &p.Title, pq.Array(&p.Tags)); err != nil {
			return nil, fmt.Errorf("scan recent post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) CountCommentsByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE user_id = $1`, authorID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

func (s *PGStore) Post(ctx context.Context, id string) (*types.Post, error) {
	var p types.Post
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(title, ''), COALESCE(description, ''), COALESCE(tags, '{}'), COALESCE(user_id::text, '')
		 FROM posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Description, pq.Array(&p.Tags), &p.AuthorID)
	if err != nil {
		return nil, notFound(err, "query post")
	}
	return &p, nil
}

func (s *PGStore) Thread(ctx context.Context, id string) (*types.Thread, error) {
	var t types.Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(title, ''), COALESCE(parent_post_id::text, '') FROM threads WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.ParentPostID)
	if err != nil {
		return nil, notFound(err, "query thread")
	}
	return &t, nil
}

func (s *PGStore) PollForPost(ctx context.Context, postID string) (*types.Poll, error) {
	var p types.Poll
	err := s.db.QueryRowContext(ctx,
		`SELECT id, post_id, COALESCE(question, '') FROM polls WHERE post_id = $1 ORDER BY created_at ASC LIMIT 1`, postID,
	).Scan(&p.ID, &p.PostID, &p.Question)
	if err != nil {
		return nil, notFound(err, "query poll")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, option_text, COALESCE(votes_count, 0) FROM poll_options WHERE poll_id = $1 ORDER BY id ASC`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("query poll options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		opt := types.PollOption{PollID: p.ID}
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.VotesCount); err != nil {
			return nil, fmt.Errorf("scan poll option: %w", err)
		}
		p.Options = append(p.Options, opt)
	}
	return &p, rows.Err()
}

func (s *PGStore) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, COALESCE(value, '') FROM ai_settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// Content writes.

func (s *PGStore) InsertPost(ctx context.Context, post types.NewPost) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, description, tags, user_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		post.Title, post.Description, pq.Array(post.Tags), post.AuthorID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

func (s *PGStore) InsertPoll(ctx context.Context, poll types.NewPoll) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO polls (post_id, question, created_by) VALUES ($1, $2, $3) RETURNING id`,
		poll.PostID, poll.Question, poll.CreatedBy,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert poll: %w", err)
	}
	return id, nil
}

func (s *PGStore) InsertPollOptions(ctx context.Context, pollID string, options []string) ([]types.PollOption, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin poll options: %w", err)
	}
	defer tx.Rollback()

	out := make([]types.PollOption, 0, len(options))
	for _, text := range options {
		opt := types.PollOption{PollID: pollID, Text: text}
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO poll_options (poll_id, option_text, votes_count) VALUES ($1, $2, 0) RETURNING id`,
			pollID, text,
		).Scan(&opt.ID); err != nil {
			return nil, fmt.Errorf("insert poll option: %w", err)
		}
		out = append(out, opt)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit poll options: %w", err)
	}
	return out, nil
}

func (s *PGStore) HasVoted(ctx context.Context, pollID, userID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM poll_votes WHERE poll_id = $1 AND user_id = $2)`, pollID, userID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return exists, nil
}

func (s *PGStore) InsertVote(ctx context.Context, pollID string, optionID int64, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO poll_votes (poll_id, option_id, user_id) VALUES ($1, $2, $3)`, pollID, optionID, userID,
	); err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *PGStore) IncrementOptionVotes(ctx context.Context, optionID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE poll_options SET votes_count = COALESCE(votes_count, 0) + 1 WHERE id = $1`, optionID)
	if err != nil {
		return fmt.Errorf("increment votes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("increment votes: option %d: %w", optionID, types.ErrNotFound)
	}
	return nil
}

func (s *PGStore) DeleteRow(ctx context.Context, table, id string) error {
	if !types.Deletable(table) {
		return fmt.Errorf("delete from %s: table not deletable", table)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pq.QuoteIdentifier(table))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *PGStore) InsertReply(ctx context.Context, reply types.ReplyRow) error {
	cols := []string{pq.QuoteIdentifier(reply.ParentField), "content", "user_id"}
	args := []any{reply.ParentID, reply.Content, reply.AuthorID}
	if reply.Title != "" {
		cols = append(cols, "title")
		args = append(args, reply.Title)
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		pq.QuoteIdentifier(reply.Table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert reply into %s: %w", reply.Table, err)
	}
	return nil
}

// Claim log.

func (s *PGStore) InsertClaim(ctx context.Context, rec *types.ClaimRecord) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, trigger_id, input_text, output_text, source) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		s.claimTable)
	err := s.db.QueryRowContext(ctx, query,
		string(rec.ID), string(rec.TriggerID), rec.InputText, rec.OutputText, rec.Source,
	).Scan(&rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.ErrDuplicateClaim
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *PGStore) EarliestClaims(ctx context.Context, triggerID types.TriggerID, limit int) ([]*types.ClaimRecord, error) {
	query := fmt.Sprintf(
		`SELECT id, trigger_id, COALESCE(input_text, ''), COALESCE(output_text, ''), COALESCE(source, ''), created_at
		 FROM %s WHERE trigger_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2`, s.claimTable)
	return s.queryClaims(ctx, query, string(triggerID), limit)
}

func (s *PGStore) ClaimExists(ctx context.Context, triggerID types.TriggerID) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE trigger_id = $1)`, s.claimTable)
	if err := s.db.QueryRowContext(ctx, query, string(triggerID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check claim: %w", err)
	}
	return exists, nil
}

func (s *PGStore) UpdateClaimOutput(ctx context.Context, id types.ClaimID, output string) error {
	query := fmt.Sprintf(`UPDATE %s SET output_text = $1 WHERE id = $2`, s.claimTable)
	res, err := s.db.ExecContext(ctx, query, output, string(id))
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update claim %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func (s *PGStore) DeleteClaim(ctx context.Context, id types.ClaimID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.claimTable)
	if _, err := s.db.ExecContext(ctx, query, string(id)); err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return nil
}

func (s *PGStore) StaleClaims(ctx context.Context, output string, olderThan time.Time) ([]*types.ClaimRecord, error) {
	query := fmt.Sprintf(
		`SELECT id, trigger_id, COALESCE(input_text, ''), COALESCE(output_text, ''), COALESCE(source, ''), created_at
		 FROM %s WHERE output_text = $1 AND created_at < $2 ORDER BY created_at ASC`, s.claimTable)
	return s.queryClaims(ctx, query, output, olderThan)
}

func (s *PGStore) queryClaims(ctx context.Context, query string, args ...any) ([]*types.ClaimRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var out []*types.ClaimRecord
	for rows.Next() {
		var (
			rec      types.ClaimRecord
			id, trig string
		)
		if err := rows.Scan(&id, &trig, &rec.InputText, &rec.OutputText, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		rec.ID = types.ClaimID(id)
		rec.TriggerID = types.TriggerID(trig)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Execution log.

func (s *PGStore) AppendExecution(ctx context.Context, entry *types.ExecutionEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (trigger_id, input_text, output_text, source, model, approx_token_count, action, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.executionTable)
	if _, err := s.db.ExecContext(ctx, query,
		string(entry.TriggerID), entry.InputText, entry.OutputText, entry.Source,
		entry.Model, entry.ApproxTokenCount, entry.Action, entry.At,
	); err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	return nil
}
