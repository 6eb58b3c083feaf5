package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gitinspire/gitinspire-server/internal/apperror"
	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

// ReportService manages user-filed reports and their resolution.
type ReportService struct {
	reports repository.ReportRepository
	logger  *slog.Logger
}

func NewReportService(reports repository.ReportRepository, logger *slog.Logger) *ReportService {
	return &ReportService{reports: reports, logger: logger}
}

// Create files a report against a repository, tag, or user.
func (s *ReportService) Create(ctx context.Context, caller *model.User, kind, contentID, reason, maintainLink, info string) (*model.Report, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, apperror.ValidationFailed("content_id", "A report target is required.")
	}
	if len(contentID) > model.MaxContentIDLength {
		return nil, apperror.ValidationFailed("content_id",
			fmt.Sprintf("The report target can't be more than %d characters.", model.MaxContentIDLength))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.ValidationFailed("reason", "A report reason is required.")
	}

	if len(info) > model.MaxReportInfoLength {
		return nil, apperror.ValidationFailed("info",
			fmt.Sprintf("Additional information can't be more than %d characters.", model.MaxReportInfoLength))
	}

	target, err := model.ParseTarget(model.TargetKind(strings.TrimSpace(kind)), contentID)
	if err != nil {
		return nil, apperror.ValidationFailed("type", "Invalid report type.")
	}

	maintainLink = strings.TrimSpace(maintainLink)
	if reason == "maintain_link" && target.Kind() == model.TargetRepository && maintainLink == "" {
		return nil, apperror.ValidationFailed("maintain_link", "A maintain link is required for this report.")
	}

	report := &model.Report{
		Target:       target,
		Reason:       reason,
		MaintainLink: maintainLink,
		Info:         strings.TrimSpace(info),
		ReportedBy:   caller.ID,
	}
	if err := s.reports.CreateReport(ctx, report); err != nil {
		s.logger.Error("failed to create report", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating report: %w", err)
	}

	s.logger.Info("report created",
		slog.Int64("id", report.ID),
		slog.String("type", string(target.Kind())),
		slog.Int64("reported_by", caller.ID),
	)

	return report, nil
}

func (s *ReportService) List(ctx context.Context) ([]model.Report, error) {
	return s.reports.ListReports(ctx)
}

// Resolve closes a report. Both outcomes remove the row; they differ only
// in the audit action. A report that is already gone resolves to nil
// without error.
func (s *ReportService) Resolve(ctx context.Context, caller *model.User, id int64, action string) (*model.Report, error) {
	if action != "resolve" && action != "dismiss" {
		return nil, apperror.ValidationFailed("action", "Action must be one of: resolve, dismiss.")
	}

	report, err := s.reports.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	entry := &model.Log{
		Action:    fmt.Sprintf("resolved (%s)", action),
		Target:    report.Target,
		EnactedBy: caller.ID,
	}
	if err := s.reports.DeleteReport(ctx, id, entry); err != nil {
		return nil, fmt.Errorf("resolving report %d: %w", id, err)
	}

	s.logger.Info("report resolved",
		slog.Int64("id", id),
		slog.String("action", action),
		slog.Int64("enacted_by", caller.ID),
	)

	return report, nil
}
