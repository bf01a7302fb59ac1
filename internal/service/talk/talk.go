// Package talk manages toolbox talks and the files stored for them.
package talk

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	talkrepo "github.com/Taichi-iskw/talk-subtitles/internal/repository/talk"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/storage"
)

// Service defines toolbox talk operations
type Service interface {
	Create(ctx context.Context, tenantID, title string) (*model.ToolboxTalk, error)
	Get(ctx context.Context, id string) (*model.ToolboxTalk, error)

	// Delete removes the talk's stored files, then the talk and its subtitle jobs
	Delete(ctx context.Context, id string) (int, error)

	// Attach stores a video, PDF or certificate for the talk
	Attach(ctx context.Context, talkID string, kind model.ArtifactKind, content []byte) (*model.StoredArtifact, error)

	// Download reads a stored file of the talk's tenant
	Download(ctx context.Context, talkID, storageKey string) ([]byte, error)
}

// service implements Service
type service struct {
	repo    talkrepo.Repository
	storage storage.Service
	logger  *slog.Logger
}

// NewService creates a new talk service
func NewService(repo talkrepo.Repository, store storage.Service, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, storage: store, logger: logging.WithComponent(logger, "talk")}
}

func (s *service) Create(ctx context.Context, tenantID, title string) (*model.ToolboxTalk, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, apperrors.New(apperrors.CodeValidation, "tenant id must be a UUID")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "title is required")
	}

	t := &model.ToolboxTalk{TenantID: tenantID, Title: title}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("toolbox talk created", logging.FieldTalkID, t.ID, logging.FieldTenantID, tenantID)
	return t, nil
}

func (s *service) Get(ctx context.Context, id string) (*model.ToolboxTalk, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Delete(ctx context.Context, id string) (int, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	removed, err := s.storage.DeleteArtifactsForTalk(ctx, t.TenantID, t.ID)
	if err != nil {
		return removed, err
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		return removed, err
	}
	s.logger.Info("toolbox talk deleted", logging.FieldTalkID, t.ID, "files_removed", removed)
	return removed, nil
}

func (s *service) Attach(ctx context.Context, talkID string, kind model.ArtifactKind, content []byte) (*model.StoredArtifact, error) {
	if kind == model.ArtifactSubtitles {
		return nil, apperrors.New(apperrors.CodeValidation, "subtitles are produced by subtitle jobs")
	}
	t, err := s.repo.GetByID(ctx, talkID)
	if err != nil {
		return nil, err
	}
	return s.storage.UploadArtifact(ctx, t.TenantID, t.ID, kind, content, storage.ArtifactMetadata{Title: t.Title})
}

func (s *service) Download(ctx context.Context, talkID, storageKey string) ([]byte, error) {
	t, err := s.repo.GetByID(ctx, talkID)
	if err != nil {
		return nil, err
	}
	return s.storage.Download(ctx, t.TenantID, storageKey)
}
