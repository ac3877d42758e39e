package drafts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

type ArticleRepo interface {
	Create(dbc dbctx.Context, rows []*types.Article) ([]*types.Article, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Article, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Article, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// CountSlugFamily counts slugs in the partition equal to base or of the
	// form base-<suffix>, ignoring excludeID.
	CountSlugFamily(dbc dbctx.Context, status types.ArticleStatus, base string, excludeID uuid.UUID) (int64, error)
	SlugTaken(dbc dbctx.Context, status types.ArticleStatus, slug string, excludeID uuid.UUID) (bool, error)
}

type articleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArticleRepo(db *gorm.DB, baseLog *logger.Logger) ArticleRepo {
	return &articleRepo{db: db, log: baseLog.With("repo", "ArticleRepo")}
}

func (r *articleRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *articleRepo) Create(dbc dbctx.Context, rows []*types.Article) ([]*types.Article, error) {
	if len(rows) == 0 {
		return []*types.Article{}, nil
	}
	if err := r.tx(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *articleRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Article, error) {
	var out []*types.Article
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *articleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Article, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *articleRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).
		Model(&types.Article{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CountSlugFamily counts base and every base-* slug in the partition, which
// includes dashed siblings such as base-news.
func (r *articleRepo) CountSlugFamily(dbc dbctx.Context, status types.ArticleStatus, base string, excludeID uuid.UUID) (int64, error) {
	var n int64
	q := r.tx(dbc).
		Model(&types.Article{}).
		Where("status = ?", status).
		Where("(slug = ? OR slug LIKE ?)", base, base+"-%")
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *articleRepo) SlugTaken(dbc dbctx.Context, status types.ArticleStatus, slug string, excludeID uuid.UUID) (bool, error) {
	var n int64
	q := r.tx(dbc).
		Model(&types.Article{}).
		Where("status = ? AND slug = ?", status, slug)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
