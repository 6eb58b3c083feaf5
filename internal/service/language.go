package service

import (
	"context"
	"log/slog"

	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

// LanguageService exposes the languages seen across mirrored
// repositories. Rows are created lazily by the suggestion and refresh
// flows, never through this service.
type LanguageService struct {
	langs  repository.LanguageRepository
	logger *slog.Logger
}

func NewLanguageService(langs repository.LanguageRepository, logger *slog.Logger) *LanguageService {
	return &LanguageService{langs: langs, logger: logger}
}

func (s *LanguageService) List(ctx context.Context) ([]model.Language, error) {
	return s.langs.ListLanguages(ctx)
}
