package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Verdict is a submission's judged outcome.
type Verdict string

const (
	VerdictPending Verdict = "pending"
	VerdictAC      Verdict = "AC"
	VerdictWA      Verdict = "WA"
	VerdictTLE     Verdict = "TLE"
	VerdictMLE     Verdict = "MLE"
	VerdictRE      Verdict = "RE"
)

// TestCase is one (input, expected output) pair fetched from the content
// service for the duration of a single judging job.
type TestCase struct {
	Input          string
	ExpectedOutput string
}

// ProblemSpec is the judging-relevant projection of a problem, also scoped
// to one judging job.
type ProblemSpec struct {
	TestCases      []TestCase
	TimeLimitS     float64
	MemoryLimitMiB float64
}

// Submission is the persistent record C4 exclusively owns.
type Submission struct {
	ID         int64
	AuthorID   string // Keycloak sub
	ProblemID  int64
	Code       string
	Language   string
	Status     Verdict
	TimeUsed   *float64 // seconds
	MemoryUsed *float64 // MiB
	FasterThan *float64 // percent
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PerTestResultRow is the persisted projection of one PerTestResult, stored
// in the per_test_results child table for introspection/debugging.
type PerTestResultRow struct {
	TestIndex int
	Status    Verdict
	TimeMS    *int32
}

// SubmissionListItem is a flattened view for list endpoints.
type SubmissionListItem struct {
	ID         int64     `json:"id"`
	AuthorID   string    `json:"author_id"`
	ProblemID  int64     `json:"problem_id"`
	Language   string    `json:"language"`
	Status     Verdict   `json:"status"`
	TimeUsed   *float64  `json:"time_used"`
	MemoryUsed *float64  `json:"memory_used"`
	FasterThan *float64  `json:"faster_than"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmissionRepository defines persistence operations needed by the API and
// worker, per spec §4.4.
type SubmissionRepository interface {
	Create(ctx context.Context, authorID string, problemID int64, code, language string) (*Submission, error)
	Get(ctx context.Context, id int64) (*Submission, error)
	UpdateTerminal(ctx context.Context, id int64, status Verdict, timeUsed, memoryUsed, fasterThan *float64, perTest []PerTestResultRow) error
	ListByProblem(ctx context.Context, problemID int64, offset, limit int) ([]SubmissionListItem, error)
	ListByProblemAndUser(ctx context.Context, problemID int64, authorID string, offset, limit int) ([]SubmissionListItem, error)
	ListByIDs(ctx context.Context, ids []int64, authorID, problemID string, offset, limit int) ([]SubmissionListItem, error)
	Percentile(ctx context.Context, problemID int64, elapsedS float64) (float64, error)
}

// PgSubmissionRepository is the pgx implementation, adapted from the
// teacher's transactional-write pattern in SaveResult/AcquirePending.
type PgSubmissionRepository struct {
	db *pgxpool.Pool
}

func NewPgSubmissionRepository(db *pgxpool.Pool) *PgSubmissionRepository {
	return &PgSubmissionRepository{db: db}
}

var ErrSubmissionNotFound = errors.New("submission not found")

func (r *PgSubmissionRepository) Create(ctx context.Context, authorID string, problemID int64, code, language string) (*Submission, error) {
	const q = `INSERT INTO submissions (author_id, problem_id, code, language, status)
		VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`
	s := &Submission{AuthorID: authorID, ProblemID: problemID, Code: code, Language: language, Status: VerdictPending}
	if err := r.db.QueryRow(ctx, q, authorID, problemID, code, language, string(VerdictPending)).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PgSubmissionRepository) Get(ctx context.Context, id int64) (*Submission, error) {
	const q = `SELECT id, author_id, problem_id, code, language, status,
		time_used_ms, memory_used_kb, faster_than, created_at, updated_at
		FROM submissions WHERE id=$1`
	var s Submission
	var status string
	var timeMS, memoryKB sql.NullInt32
	var fasterThan sql.NullFloat64
	if err := r.db.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.AuthorID, &s.ProblemID, &s.Code, &s.Language, &status,
		&timeMS, &memoryKB, &fasterThan, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	s.Status = Verdict(status)
	if timeMS.Valid {
		v := float64(timeMS.Int32) / 1000.0
		s.TimeUsed = &v
	}
	if memoryKB.Valid {
		v := float64(memoryKB.Int32) / 1024.0
		s.MemoryUsed = &v
	}
	if fasterThan.Valid {
		s.FasterThan = &fasterThan.Float64
	}
	return &s, nil
}

// UpdateTerminal records a judge outcome transactionally. It is a no-op when
// the submission is already in a terminal state, closing the re-judge
// idempotency gap spec.md flags as an open question.
func (r *PgSubmissionRepository) UpdateTerminal(ctx context.Context, id int64, status Verdict, timeUsed, memoryUsed, fasterThan *float64, perTest []PerTestResultRow) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM submissions WHERE id=$1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSubmissionNotFound
		}
		return err
	}
	if Verdict(current) != VerdictPending {
		return nil
	}

	var timeMS, memoryKB *int32
	if timeUsed != nil {
		v := int32(*timeUsed * 1000.0)
		timeMS = &v
	}
	if memoryUsed != nil {
		v := int32(*memoryUsed * 1024.0)
		memoryKB = &v
	}

	const upd = `UPDATE submissions SET status=$1, time_used_ms=$2, memory_used_kb=$3,
		faster_than=$4, updated_at=NOW() WHERE id=$5`
	if _, err := tx.Exec(ctx, upd, string(status), timeMS, memoryKB, fasterThan, id); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM per_test_results WHERE submission_id=$1`, id); err != nil {
		return err
	}
	for _, row := range perTest {
		if _, err := tx.Exec(ctx,
			`INSERT INTO per_test_results (submission_id, test_index, status, time_ms) VALUES ($1,$2,$3,$4)`,
			id, row.TestIndex, string(row.Status), row.TimeMS,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgSubmissionRepository) ListByProblem(ctx context.Context, problemID int64, offset, limit int) ([]SubmissionListItem, error) {
	const q = `SELECT id, author_id, problem_id, language, status, time_used_ms, memory_used_kb, faster_than, created_at
		FROM submissions WHERE problem_id=$1 ORDER BY id LIMIT $2 OFFSET $3`
	return r.scanListItems(ctx, q, problemID, limit, offset)
}

func (r *PgSubmissionRepository) ListByProblemAndUser(ctx context.Context, problemID int64, authorID string, offset, limit int) ([]SubmissionListItem, error) {
	const q = `SELECT id, author_id, problem_id, language, status, time_used_ms, memory_used_kb, faster_than, created_at
		FROM submissions WHERE problem_id=$1 AND author_id=$2 ORDER BY id LIMIT $3 OFFSET $4`
	return r.scanListItems(ctx, q, problemID, authorID, limit, offset)
}

// ListByIDs backs C7's contest-solutions query: rows whose problem_id is in
// ids, with optional equality filters. It does not filter by participant;
// the caller does that.
func (r *PgSubmissionRepository) ListByIDs(ctx context.Context, ids []int64, authorID, problemID string, offset, limit int) ([]SubmissionListItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filters := []string{"problem_id = ANY($1)"}
	args := []interface{}{ids}
	if authorID != "" {
		filters = append(filters, fmt.Sprintf("author_id=$%d", len(args)+1))
		args = append(args, authorID)
	}
	if problemID != "" {
		filters = append(filters, fmt.Sprintf("problem_id=$%d", len(args)+1))
		args = append(args, problemID)
	}
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT id, author_id, problem_id, language, status, time_used_ms, memory_used_kb, faster_than, created_at
		FROM submissions WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`, strings.Join(filters, " AND "), len(args)-1, len(args))
	return r.scanListItems(ctx, q, args...)
}

func (r *PgSubmissionRepository) scanListItems(ctx context.Context, q string, args ...interface{}) ([]SubmissionListItem, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SubmissionListItem
	for rows.Next() {
		var v SubmissionListItem
		var status string
		var timeMS, memoryKB sql.NullInt32
		var fasterThan sql.NullFloat64
		if err := rows.Scan(&v.ID, &v.AuthorID, &v.ProblemID, &v.Language, &status, &timeMS, &memoryKB, &fasterThan, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Status = Verdict(status)
		if timeMS.Valid {
			t := float64(timeMS.Int32) / 1000.0
			v.TimeUsed = &t
		}
		if memoryKB.Valid {
			m := float64(memoryKB.Int32) / 1024.0
			v.MemoryUsed = &m
		}
		if fasterThan.Valid {
			v.FasterThan = &fasterThan.Float64
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// Percentile implements C6's formula: 100.0 when no AC submissions exist yet
// for the problem, else the percentage of AC submissions slower than elapsedS.
func (r *PgSubmissionRepository) Percentile(ctx context.Context, problemID int64, elapsedS float64) (float64, error) {
	const q = `SELECT
		count(*) FILTER (WHERE time_used_ms/1000.0 > $2),
		count(*)
		FROM submissions WHERE problem_id=$1 AND status='AC'`
	var slower, total int64
	if err := r.db.QueryRow(ctx, q, problemID, elapsedS).Scan(&slower, &total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 100.0, nil
	}
	return 100.0 * float64(slower) / float64(total), nil
}
