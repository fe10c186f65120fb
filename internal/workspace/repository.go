package workspace

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	UpsertRow(ctx context.Context, row *CachedRow) error
	GetRow(ctx context.Context, labelHash string) (*CachedRow, error)
	ListRows(ctx context.Context) ([]*CachedRow, error)
	DeleteRow(ctx context.Context, labelHash string) error
	UpdateRowPayload(ctx context.Context, labelHash string, payload []byte) error
	MarkSaved(ctx context.Context, labelHash, version string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	ActiveJobForRow(ctx context.Context, jobType, labelHash string) (*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	IncrementJobAttempts(ctx context.Context, id string) (int, error)
	SetJobResult(ctx context.Context, id, result string) error
	RequeueRunningJobs(ctx context.Context) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const rowColumns = `label_hash, ontology_hash, data_title, data_type, version, payload, dirty, fetched_at, updated_at`

func (r *SQLiteRepository) UpsertRow(ctx context.Context, c *CachedRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO label_rows (`+rowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label_hash) DO UPDATE SET
			ontology_hash = excluded.ontology_hash,
			data_title = excluded.data_title,
			data_type = excluded.data_type,
			version = excluded.version,
			payload = excluded.payload,
			dirty = excluded.dirty,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at
	`, c.LabelHash, c.OntologyHash, c.DataTitle, c.DataType, c.Version, c.Payload, boolToInt(c.Dirty),
		formatTime(c.FetchedAt), formatTime(c.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetRow(ctx context.Context, labelHash string) (*CachedRow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+rowColumns+` FROM label_rows WHERE label_hash = ?`, labelHash)
	c, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanRow(s scanner) (*CachedRow, error) {
	var c CachedRow
	var dirty int
	var fetchedAt, updatedAt string

	if err := s.Scan(&c.LabelHash, &c.OntologyHash, &c.DataTitle, &c.DataType, &c.Version, &c.Payload, &dirty, &fetchedAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Dirty = dirty == 1
	c.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteRepository) ListRows(ctx context.Context) ([]*CachedRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+rowColumns+` FROM label_rows ORDER BY updated_at DESC, label_hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CachedRow
	for rows.Next() {
		c, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteRow(ctx context.Context, labelHash string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM label_rows WHERE label_hash = ?", labelHash)
	return err
}

// UpdateRowPayload stores an edited working copy and marks it dirty.
func (r *SQLiteRepository) UpdateRowPayload(ctx context.Context, labelHash string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE label_rows SET payload = ?, dirty = 1, updated_at = ? WHERE label_hash = ?
	`, payload, formatTime(time.Now()), labelHash)
	return err
}

// MarkSaved records the version the platform assigned after a save.
func (r *SQLiteRepository) MarkSaved(ctx context.Context, labelHash, version string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE label_rows SET version = ?, dirty = 0, updated_at = ? WHERE label_hash = ?
	`, version, formatTime(time.Now()), labelHash)
	return err
}

const jobColumns = `id, type, status, label_hash, attempts, error, result, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.LabelHash), j.Attempts, nullString(j.Error), nullString(j.Result),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var labelHash, errMsg, result sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&j.ID, &j.Type, &j.Status, &labelHash, &j.Attempts, &errMsg, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.LabelHash = labelHash.String
	j.Error = errMsg.String
	j.Result = result.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ActiveJobForRow returns a pending or running job of the given type for a
// label row, or nil when there is none.
func (r *SQLiteRepository) ActiveJobForRow(ctx context.Context, jobType, labelHash string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE type = ? AND label_hash = ? AND status IN ('pending', 'running')
		ORDER BY created_at ASC LIMIT 1
	`, jobType, labelHash)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

// IncrementJobAttempts bumps the attempt counter and returns the new value.
func (r *SQLiteRepository) IncrementJobAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE jobs SET attempts = attempts + 1, updated_at = ? WHERE id = ? RETURNING attempts
	`, formatTime(time.Now()), id).Scan(&attempts)
	return attempts, err
}

// RequeueRunningJobs returns jobs left running by a previous process to
// pending.
func (r *SQLiteRepository) RequeueRunningJobs(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, updated_at = ? WHERE status = ?
	`, JobStatusPending, formatTime(time.Now()), JobStatusRunning)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) SetJobResult(ctx context.Context, id, result string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET result = ?, updated_at = ? WHERE id = ?
	`, nullString(result), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
