package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vanzer80/solicitacao-materiais-api/internal/models"
)

// ExportRepository tracks asynchronous history export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository creates the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a new export job in its initial state.
func (r *ExportRepository) Create(ctx context.Context, job models.ExportJob) error {
	const query = `INSERT INTO export_jobs
		(id, formato, status, filter_json, file_path, download_token, error_message, expires_at, created_at, updated_at)
		VALUES (:id, :formato, :status, :filter_json, :file_path, :download_token, :error_message, :expires_at, NOW(), NOW())`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

// FindByID returns a job by id, or nil when absent.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, formato, status, filter_json, file_path, download_token, error_message,
		expires_at, created_at, updated_at FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// MarkProcessing transitions a job to the processing state.
func (r *ExportRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, models.ExportStatusProcessing, "")
}

// MarkDone records the rendered file and the signed download token.
func (r *ExportRepository) MarkDone(ctx context.Context, id, filePath, downloadToken string, expiresAt time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, file_path = $3, download_token = $4,
		expires_at = $5, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ExportStatusDone, filePath, downloadToken, expiresAt); err != nil {
		return fmt.Errorf("mark export job done: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason.
func (r *ExportRepository) MarkFailed(ctx context.Context, id, message string) error {
	return r.setStatus(ctx, id, models.ExportStatusFailed, message)
}

func (r *ExportRepository) setStatus(ctx context.Context, id, status, message string) error {
	const query = `UPDATE export_jobs SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, message); err != nil {
		return fmt.Errorf("update export job status: %w", err)
	}
	return nil
}

// DeleteExpired removes jobs whose download window has passed and returns
// the file paths that should be cleaned from storage.
func (r *ExportRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	const query = `DELETE FROM export_jobs WHERE expires_at IS NOT NULL AND expires_at < $1 RETURNING file_path`
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query, now); err != nil {
		return nil, fmt.Errorf("delete expired export jobs: %w", err)
	}
	return paths, nil
}
