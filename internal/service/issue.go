package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/permission"
	"github.com/sakif/issue-tracker/internal/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// IssueService handles business logic for issues: validation, role-based
// visibility, and the triage-field update rules.
type IssueService struct {
	repo repository.IssueRepository

	// anonymousUserID is the shared placeholder account that owns issues
	// filed without authentication. Resolved once at startup.
	anonymousUserID string

	logger *slog.Logger
}

func NewIssueService(repo repository.IssueRepository, anonymousUserID string, logger *slog.Logger) *IssueService {
	return &IssueService{
		repo:            repo,
		anonymousUserID: anonymousUserID,
		logger:          logger,
	}
}

// Create validates and files a new issue. A nil caller files as the
// anonymous placeholder account. Severity is optional and defaults to
// medium; status always starts at open.
func (s *IssueService) Create(ctx context.Context, caller *model.User, title, description, severity string) (*model.Issue, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if description == "" {
		return nil, apperror.ValidationFailed("description", "description is required")
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	sev := model.SeverityMedium
	if severity != "" {
		if !model.ValidSeverity(severity) {
			return nil, apperror.ValidationFailed("severity",
				fmt.Sprintf("invalid severity %q", severity))
		}
		sev = model.Severity(severity)
	}

	createdBy := s.anonymousUserID
	if caller != nil {
		createdBy = caller.ID
	}

	issue := &model.Issue{
		Title:       title,
		Description: description,
		Status:      model.StatusOpen,
		Severity:    sev,
		CreatedBy:   createdBy,
	}
	if err := s.repo.Create(ctx, issue); err != nil {
		s.logger.Error("failed to create issue",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating issue: %w", err)
	}

	s.logger.Info("issue created",
		slog.String("id", issue.ID),
		slog.String("createdBy", createdBy),
	)
	return issue, nil
}

// Get retrieves one issue. Callers without the view-all permission resolve
// only their own issues; anything else reads as not found so the response
// doesn't reveal whether the issue exists.
func (s *IssueService) Get(ctx context.Context, caller *model.User, id string) (*model.Issue, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "issue ID is required")
	}

	issue, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !permission.Can(caller.EffectiveRole(), permission.ViewAllIssues) && issue.CreatedBy != caller.ID {
		return nil, apperror.NotFound("issue", id)
	}
	return issue, nil
}

// List retrieves issues visible to the caller, newest first. Reporters see
// only their own.
func (s *IssueService) List(ctx context.Context, caller *model.User, limit, offset int) ([]model.Issue, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	opts := repository.ListOptions{Limit: limit, Offset: offset}
	if !permission.Can(caller.EffectiveRole(), permission.ViewAllIssues) {
		opts.CreatedBy = caller.ID
	}

	issues, err := s.repo.List(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list issues", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return issues, nil
}

// UpdateStatusSeverity changes the triage fields of an issue. Only status
// and severity ever mutate through this path; an empty string leaves the
// field unchanged, and at least one must be supplied.
func (s *IssueService) UpdateStatusSeverity(ctx context.Context, caller *model.User, id, status, severity string) (*model.Issue, error) {
	if !permission.Can(caller.EffectiveRole(), permission.UpdateIssueStatus) {
		return nil, apperror.Forbidden("updating issues requires the maintainer role")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "issue ID is required")
	}
	if status == "" && severity == "" {
		return nil, apperror.ValidationFailed("status", "nothing to update: provide status or severity")
	}

	var statusPtr *model.Status
	if status != "" {
		if !model.ValidStatus(status) {
			return nil, apperror.ValidationFailed("status",
				fmt.Sprintf("invalid status %q", status))
		}
		st := model.Status(status)
		statusPtr = &st
	}

	var severityPtr *model.Severity
	if severity != "" {
		if !model.ValidSeverity(severity) {
			return nil, apperror.ValidationFailed("severity",
				fmt.Sprintf("invalid severity %q", severity))
		}
		sev := model.Severity(severity)
		severityPtr = &sev
	}

	issue, err := s.repo.UpdateStatusSeverity(ctx, id, statusPtr, severityPtr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("issue updated",
		slog.String("id", id),
		slog.String("updatedBy", caller.ID),
	)
	return issue, nil
}

// Delete removes an issue. Admin only.
func (s *IssueService) Delete(ctx context.Context, caller *model.User, id string) error {
	if !permission.Can(caller.EffectiveRole(), permission.DeleteIssue) {
		return apperror.Forbidden("deleting issues requires the admin role")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "issue ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("issue deleted",
		slog.String("id", id),
		slog.String("deletedBy", caller.ID),
	)
	return nil
}

// Stats aggregates issue counts by status and severity, scoped the same way
// List is: reporters get counts over their own issues only.
func (s *IssueService) Stats(ctx context.Context, caller *model.User) (*model.Stats, error) {
	createdBy := ""
	if !permission.Can(caller.EffectiveRole(), permission.ViewAllIssues) {
		createdBy = caller.ID
	}

	stats, err := s.repo.Stats(ctx, createdBy)
	if err != nil {
		s.logger.Error("failed to compute issue stats", slog.String("error", err.Error()))
		return nil, fmt.Errorf("computing issue stats: %w", err)
	}
	return stats, nil
}
