package service

import (
	"context"
	"log/slog"

	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

// DefaultLogLimit is the audit page size when the caller supplies none.
const DefaultLogLimit = 25

// LogService exposes the audit trail, newest first.
type LogService struct {
	logs   repository.LogRepository
	logger *slog.Logger
}

func NewLogService(logs repository.LogRepository, logger *slog.Logger) *LogService {
	return &LogService{logs: logs, logger: logger}
}

// List returns the requested page and the total entry count.
func (s *LogService) List(ctx context.Context, limit, page int) ([]model.Log, int, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if page < 1 {
		page = 1
	}
	return s.logs.ListLogs(ctx, limit, page)
}
