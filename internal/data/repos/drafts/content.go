package drafts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// ContentRepo reads and writes the per-variant content rows. A missing row
// is reported as nil, nil.
type ContentRepo interface {
	CreateDefault(dbc dbctx.Context, row *types.DefaultContent) error
	GetDefault(dbc dbctx.Context, articleID uuid.UUID) (*types.DefaultContent, error)
	UpdateDefault(dbc dbctx.Context, articleID uuid.UUID, updates map[string]interface{}) error

	CreateGraphic(dbc dbctx.Context, row *types.GraphicContent) error
	GetGraphic(dbc dbctx.Context, articleID uuid.UUID) (*types.GraphicContent, error)
	UpdateGraphic(dbc dbctx.Context, articleID uuid.UUID, updates map[string]interface{}) error
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *contentRepo) CreateDefault(dbc dbctx.Context, row *types.DefaultContent) error {
	if row == nil {
		return nil
	}
	return r.tx(dbc).Create(row).Error
}

func (r *contentRepo) GetDefault(dbc dbctx.Context, articleID uuid.UUID) (*types.DefaultContent, error) {
	var out []*types.DefaultContent
	if err := r.tx(dbc).Where("article_id = ?", articleID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *contentRepo) UpdateDefault(dbc dbctx.Context, articleID uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).Model(&types.DefaultContent{}).Where("article_id = ?", articleID).Updates(updates).Error
}

func (r *contentRepo) CreateGraphic(dbc dbctx.Context, row *types.GraphicContent) error {
	if row == nil {
		return nil
	}
	return r.tx(dbc).Create(row).Error
}

func (r *contentRepo) GetGraphic(dbc dbctx.Context, articleID uuid.UUID) (*types.GraphicContent, error) {
	var out []*types.GraphicContent
	if err := r.tx(dbc).Where("article_id = ?", articleID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *contentRepo) UpdateGraphic(dbc dbctx.Context, articleID uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).Model(&types.GraphicContent{}).Where("article_id = ?", articleID).Updates(updates).Error
}
