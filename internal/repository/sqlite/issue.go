package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/repository"
)

// IssueDB implements repository.IssueRepository.
type IssueDB struct {
	conn *sqlx.DB
}

var _ repository.IssueRepository = (*IssueDB)(nil)

const issueColumns = `id, title, description, status, severity, created_by, created_at, updated_at`

// Create inserts a new issue. ID, defaults and timestamps are assigned here.
func (db *IssueDB) Create(ctx context.Context, issue *model.Issue) error {
	now := time.Now().UTC()
	issue.ID = xid.New().String()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.Status == "" {
		issue.Status = model.StatusOpen
	}
	if issue.Severity == "" {
		issue.Severity = model.SeverityMedium
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.Title, issue.Description, issue.Status, issue.Severity,
		issue.CreatedBy, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting issue: %w", err)
	}
	return nil
}

// GetByID retrieves an issue by its ID.
func (db *IssueDB) GetByID(ctx context.Context, id string) (*model.Issue, error) {
	var issue model.Issue
	err := db.conn.GetContext(ctx, &issue,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("issue", id)
		}
		return nil, fmt.Errorf("sqlite: getting issue %s: %w", id, err)
	}
	return &issue, nil
}

// List retrieves issues, newest first, optionally narrowed to one creator.
func (db *IssueDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	args := []any{}

	if opts.CreatedBy != "" {
		query += ` WHERE created_by = ?`
		args = append(args, opts.CreatedBy)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	issues := []model.Issue{}
	if err := db.conn.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing issues: %w", err)
	}
	return issues, nil
}

// UpdateStatusSeverity mutates only the triage fields; nil leaves a field
// unchanged. Returns apperror.ErrNotFound if the issue doesn't exist.
func (db *IssueDB) UpdateStatusSeverity(ctx context.Context, id string, status *model.Status, severity *model.Severity) (*model.Issue, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *status)
	}
	if severity != nil {
		sets = append(sets, "severity = ?")
		args = append(args, *severity)
	}
	args = append(args, id)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating issue %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating issue %s: %w", id, err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("issue", id)
	}

	return db.GetByID(ctx, id)
}

// Delete removes an issue. Returns apperror.ErrNotFound if it doesn't exist.
func (db *IssueDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting issue %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting issue %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("issue", id)
	}
	return nil
}

// Stats counts issues grouped by status and severity. Missing enumeration
// values come back zero-filled; the caller never has to guess absent keys.
func (db *IssueDB) Stats(ctx context.Context, createdBy string) (*model.Stats, error) {
	stats := &model.Stats{
		StatusCounts:   make(map[model.Status]int, len(model.Statuses)),
		SeverityCounts: make(map[model.Severity]int, len(model.Severities)),
	}
	for _, s := range model.Statuses {
		stats.StatusCounts[s] = 0
	}
	for _, s := range model.Severities {
		stats.SeverityCounts[s] = 0
	}

	where := ""
	args := []any{}
	if createdBy != "" {
		where = ` WHERE created_by = ?`
		args = append(args, createdBy)
	}

	type countRow struct {
		Value string `db:"value"`
		Count int    `db:"count"`
	}

	var statusRows []countRow
	err := db.conn.SelectContext(ctx, &statusRows,
		`SELECT status AS value, COUNT(*) AS count FROM issues`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting issues by status: %w", err)
	}
	for _, row := range statusRows {
		stats.StatusCounts[model.Status(row.Value)] = row.Count
		stats.Total += row.Count
	}

	var severityRows []countRow
	err = db.conn.SelectContext(ctx, &severityRows,
		`SELECT severity AS value, COUNT(*) AS count FROM issues`+where+` GROUP BY severity`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting issues by severity: %w", err)
	}
	for _, row := range severityRows {
		stats.SeverityCounts[model.Severity(row.Value)] = row.Count
	}

	return stats, nil
}
