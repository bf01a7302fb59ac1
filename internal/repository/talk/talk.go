package talk

import (
	"context"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

// Repository defines operations for ToolboxTalk persistence
type Repository interface {
	Create(ctx context.Context, talk *model.ToolboxTalk) error
	GetByID(ctx context.Context, id string) (*model.ToolboxTalk, error)
	Delete(ctx context.Context, id string) error
}
