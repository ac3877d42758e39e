package app

import (
	"github.com/yungbote/draftsync-backend/internal/data/aggregates"
	"github.com/yungbote/draftsync-backend/internal/data/repos"
	domainagg "github.com/yungbote/draftsync-backend/internal/domain/aggregates"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/media"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/session"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/slug"
	"github.com/yungbote/draftsync-backend/internal/modules/drafts/source"
	"github.com/yungbote/draftsync-backend/internal/observability"
	"github.com/yungbote/draftsync-backend/internal/platform/locks"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
	"github.com/yungbote/draftsync-backend/internal/services"
)

type Services struct {
	Drafts   domainagg.DraftAggregate
	Sync     source.Service
	Resolver media.Resolver
	Deleter  media.Deleter
	Sessions *session.Manager
	Draft    services.DraftService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, rs repos.Set, metrics *observability.Metrics, publisher session.Publisher) Services {
	log.Info("Wiring services...")

	base := aggregates.BaseDeps{
		DB:    clients.DB,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(metrics),
	}
	drafts := aggregates.NewDraftAggregate(aggregates.DraftAggregateDeps{
		Base:     base,
		Articles: rs.Articles,
		Content:  rs.Content,
		Links:    rs.Links,
		Media:    rs.Media,
		Slugs:    slug.NewDeriver(rs.Articles, log),
	})
	covers := aggregates.NewMediaAggregate(aggregates.MediaAggregateDeps{Base: base, Media: rs.Media})

	resolver := media.NewResolver(media.ResolverDeps{
		Log:         log,
		Media:       rs.Media,
		Covers:      covers,
		Blobs:       clients.Bucket,
		Fetcher:     media.NewFetcher(cfg.MediaFetchTimeout, cfg.MediaMaxBytes),
		Concurrency: cfg.MediaConcurrency,
		Metrics:     metrics,
	})
	deleter := media.NewDeleter(media.DeleterDeps{
		Log:     log,
		Media:   rs.Media,
		Purger:  covers,
		Blobs:   clients.Bucket,
		Metrics: metrics,
	})

	var mirror source.ImageMirror
	if cfg.MirrorIngestImages {
		mirror = media.NewMirror(log, resolver, storedPrefix(clients.Bucket))
	}
	syncSvc := source.NewService(source.Deps{
		Log:      log,
		Provider: clients.Drive,
		Store:    drafts,
		Mirror:   mirror,
	})

	var locker locks.Locker = locks.NewLocal()
	if clients.Redis != nil {
		locker = locks.NewRedis(log, clients.Redis, locks.RedisConfig{TTL: cfg.LockTTL})
	}
	sessions := session.NewManager(session.ManagerDeps{
		Log:    log,
		Loader: drafts,
		Remote: services.NewDraftRemote(services.DraftRemoteDeps{
			Log:     log,
			Drafts:  drafts,
			Sync:    syncSvc,
			Deleter: deleter,
		}),
		Locker:    locker,
		Publisher: publisher,
		Metrics:   metrics,
		Config:    cfg.Session,
		IdleTTL:   cfg.IdleTTL,
	})

	return Services{
		Drafts:   drafts,
		Sync:     syncSvc,
		Resolver: resolver,
		Deleter:  deleter,
		Sessions: sessions,
		Draft: services.NewDraftService(services.DraftServiceDeps{
			Log:      log,
			Drafts:   drafts,
			Sessions: sessions,
			Sync:     syncSvc,
			Resolver: resolver,
			Deleter:  deleter,
			Pending:  media.NewPendingTable(),
		}),
	}
}
