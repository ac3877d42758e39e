package drafts

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/draftsync-backend/internal/domain/drafts"
	"github.com/yungbote/draftsync-backend/internal/platform/dbctx"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// LinkRepo owns the ordered author and topic lists of an article. Replace
// calls delete and reinsert, so callers run them inside a transaction.
type LinkRepo interface {
	ReplaceAuthors(dbc dbctx.Context, articleID uuid.UUID, userIDs []uuid.UUID) error
	ListAuthors(dbc dbctx.Context, articleID uuid.UUID) ([]uuid.UUID, error)
	ReplaceTopics(dbc dbctx.Context, articleID uuid.UUID, topicIDs []uuid.UUID) error
	ListTopics(dbc dbctx.Context, articleID uuid.UUID) ([]uuid.UUID, error)
}

type linkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLinkRepo(db *gorm.DB, baseLog *logger.Logger) LinkRepo {
	return &linkRepo{db: db, log: baseLog.With("repo", "LinkRepo")}
}

func (r *linkRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *linkRepo) ReplaceAuthors(dbc dbctx.Context, articleID uuid.UUID, userIDs []uuid.UUID) error {
	t := r.tx(dbc)
	if err := t.Where("article_id = ?", articleID).Delete(&types.ArticleAuthor{}).Error; err != nil {
		return err
	}
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]*types.ArticleAuthor, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, &types.ArticleAuthor{ArticleID: articleID, UserID: id, Position: i})
	}
	return t.Create(&rows).Error
}

func (r *linkRepo) ListAuthors(dbc dbctx.Context, articleID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*types.ArticleAuthor
	if err := r.tx(dbc).Where("article_id = ?", articleID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.UserID)
	}
	return out, nil
}

func (r *linkRepo) ReplaceTopics(dbc dbctx.Context, articleID uuid.UUID, topicIDs []uuid.UUID) error {
	t := r.tx(dbc)
	if err := t.Where("article_id = ?", articleID).Delete(&types.ArticleTopic{}).Error; err != nil {
		return err
	}
	ids := dedupe(topicIDs)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]*types.ArticleTopic, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, &types.ArticleTopic{ArticleID: articleID, TopicID: id, Position: i})
	}
	return t.Create(&rows).Error
}

func (r *linkRepo) ListTopics(dbc dbctx.Context, articleID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*types.ArticleTopic
	if err := r.tx(dbc).Where("article_id = ?", articleID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.TopicID)
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
