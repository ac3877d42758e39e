package media

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/draftsync-backend/internal/modules/drafts/doc"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

// Mirror copies images referenced by provider html into the blob store and
// rewrites their sources. Images that fail to ingest keep their original src.
type Mirror struct {
	log      *logger.Logger
	resolver Resolver
	// Skip reports sources that are already stored copies.
	Skip func(src string) bool
}

func NewMirror(log *logger.Logger, resolver Resolver, publicBase string) *Mirror {
	publicBase = strings.TrimRight(strings.TrimSpace(publicBase), "/")
	m := &Mirror{log: log.With("service", "MediaMirror"), resolver: resolver}
	if publicBase != "" {
		m.Skip = func(src string) bool { return strings.HasPrefix(src, publicBase+"/") }
	}
	return m
}

func (m *Mirror) MirrorHTML(ctx context.Context, articleID uuid.UUID, html string) (string, error) {
	srcs, err := doc.HTMLImageSources(html)
	if err != nil {
		return "", err
	}
	items := make(map[string]Pending, len(srcs))
	for _, src := range srcs {
		if m.Skip != nil && m.Skip(src) {
			continue
		}
		items[src] = Pending{ArticleID: articleID, Ref: src}
	}
	if len(items) == 0 {
		return html, nil
	}
	repl := make(map[string]string, len(items))
	for _, res := range m.resolver.IngestBatch(ctx, items, nil) {
		if res.Err != nil {
			m.log.Warn("Mirror image ingest failed", "article_id", articleID, "src", res.CorrelationID, "error", res.Err)
			continue
		}
		repl[res.CorrelationID] = res.Asset.URL
	}
	return doc.RewriteHTMLImages(html, repl)
}
