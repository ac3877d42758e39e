package media

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

type MediaAssetRepo interface {
	Create(dbc dbctx.Context, rows []*types.MediaAsset) ([]*types.MediaAsset, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MediaAsset, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.MediaAsset, error)
	// FindByRef matches ref against both the ingestion key and the stored URL.
	FindByRef(dbc dbctx.Context, articleID uuid.UUID, ref string) (*types.MediaAsset, error)
	GetByURLs(dbc dbctx.Context, articleID uuid.UUID, urls []string) ([]*types.MediaAsset, error)
	ListByArticle(dbc dbctx.Context, articleID uuid.UUID) ([]*types.MediaAsset, error)
	ActiveCovers(dbc dbctx.Context, articleID uuid.UUID) ([]*types.MediaAsset, error)
	ListMarkedBy(dbc dbctx.Context, userID uuid.UUID) ([]*types.MediaAsset, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	MarkForDeletion(dbc dbctx.Context, ids []uuid.UUID, userID uuid.UUID) error
	ClearMarks(dbc dbctx.Context, ids []uuid.UUID) error

	// DeleteMarkedBy deletes the rows among ids still marked by userID and
	// returns the rows it removed.
	DeleteMarkedBy(dbc dbctx.Context, ids []uuid.UUID, userID uuid.UUID) ([]*types.MediaAsset, error)
}

type mediaAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaAssetRepo(db *gorm.DB, baseLog *logger.Logger) MediaAssetRepo {
	return &mediaAssetRepo{db: db, log: baseLog.With("repo", "MediaAssetRepo")}
}

func (r *mediaAssetRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *mediaAssetRepo) Create(dbc dbctx.Context, rows []*types.MediaAsset) ([]*types.MediaAsset, error) {
	if len(rows) == 0 {
		return []*types.MediaAsset{}, nil
	}
	if err := r.tx(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *mediaAssetRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.MediaAsset, error) {
	var out []*types.MediaAsset
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaAssetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MediaAsset, error) {
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

func (r *mediaAssetRepo) FindByRef(dbc dbctx.Context, articleID uuid.UUID, ref string) (*types.MediaAsset, error) {
	if articleID == uuid.Nil || ref == "" {
		return nil, nil
	}
	var out []*types.MediaAsset
	if err := r.tx(dbc).
		Where("article_id = ?", articleID).
		Where("(source_ref = ? OR url = ?)", ref, ref).
		Order("created_at ASC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *mediaAssetRepo) GetByURLs(dbc dbctx.Context, articleID uuid.UUID, urls []string) ([]*types.MediaAsset, error) {
	var out []*types.MediaAsset
	if len(urls) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("article_id = ?", articleID).
		Where("(url IN ? OR source_ref IN ?)", urls, urls).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaAssetRepo) ListByArticle(dbc dbctx.Context, articleID uuid.UUID) ([]*types.MediaAsset, error) {
	var out []*types.MediaAsset
	if err := r.tx(dbc).
		Where("article_id = ?", articleID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaAssetRepo) ActiveCovers(dbc dbctx.Context, articleID uuid.UUID) ([]*types.MediaAsset, error) {
	var out []*types.MediaAsset
	if err := r.tx(dbc).
		Where("article_id = ? AND intent = ? AND marked_for_deletion IS NULL", articleID, types.IntentCover).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaAssetRepo) ListMarkedBy(dbc dbctx.Context, userID uuid.UUID) ([]*types.MediaAsset, error) {
	var out []*types.MediaAsset
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("marked_for_deletion = ?", userID).
		Order("article_id ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mediaAssetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.MediaAsset{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *mediaAssetRepo) MarkForDeletion(dbc dbctx.Context, ids []uuid.UUID, userID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.tx(dbc).
		Model(&types.MediaAsset{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"marked_for_deletion": userID,
			"updated_at":          time.Now().UTC(),
		}).Error
}

func (r *mediaAssetRepo) ClearMarks(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.tx(dbc).
		Model(&types.MediaAsset{}).
		Where("id IN ? AND marked_for_deletion IS NOT NULL", ids).
		Updates(map[string]interface{}{
			"marked_for_deletion": nil,
			"updated_at":          time.Now().UTC(),
		}).Error
}

func (r *mediaAssetRepo) DeleteMarkedBy(dbc dbctx.Context, ids []uuid.UUID, userID uuid.UUID) ([]*types.MediaAsset, error) {
	var out []*types.MediaAsset
	if len(ids) == 0 || userID == uuid.Nil {
		return out, nil
	}
	if err := r.tx(dbc).
		Clauses(clause.Returning{}).
		Where("id IN ? AND marked_for_deletion = ?", ids, userID).
		Delete(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
