package talk

import (
	"context"
	"errors"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/repository/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// talkRepository implements Repository using PostgreSQL
type talkRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &talkRepository{
		pool: pool,
	}
}

// Create inserts a talk, generating an ID when none is set
func (r *talkRepository) Create(ctx context.Context, talk *model.ToolboxTalk) error {
	if talk.ID == "" {
		talk.ID = uuid.NewString()
	}

	sql := `INSERT INTO toolbox_talks (id, tenant_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, sql, talk.ID, talk.TenantID, talk.Title).Scan(&talk.CreatedAt)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to create toolbox talk")
	}
	return nil
}

// GetByID retrieves a talk by its ID
func (r *talkRepository) GetByID(ctx context.Context, id string) (*model.ToolboxTalk, error) {
	sql := "SELECT id, tenant_id, title, created_at FROM toolbox_talks WHERE id = $1"

	var talk model.ToolboxTalk
	err := r.pool.QueryRow(ctx, sql, id).Scan(&talk.ID, &talk.TenantID, &talk.Title, &talk.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "toolbox talk not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get toolbox talk")
	}
	return &talk, nil
}

// Delete removes a talk and, by cascade, its subtitle jobs
func (r *talkRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM toolbox_talks WHERE id = $1", id)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to delete toolbox talk")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "toolbox talk not found")
	}
	return nil
}
