package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/curatarr/curatarr/internal/feedback"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/arr"
	"github.com/curatarr/curatarr/internal/media/mediaserver"
	"github.com/curatarr/curatarr/internal/media/requests"
	"github.com/curatarr/curatarr/internal/media/stats"
)

// FeedbackSource provides the user-submitted marks for a set of titles.
type FeedbackSource interface {
	MarksFor(ctx context.Context, titleKeys []string) (map[string][]feedback.Mark, error)
}

// Aggregator builds the candidate universe for a scan by merging the library
// server's title set with the optional collaborator sources. Only the library
// server is required, every other source degrades to absent data.
type Aggregator struct {
	library   mediaserver.Client
	stats     stats.Statser
	requester requests.Requester
	radarr    arr.Arrer
	sonarr    arr.Arrer
	feedback  FeedbackSource

	// cache reuses collaborator responses across scans running close together.
	cache *gocache.Cache
}

// NewAggregator creates a new Aggregator. All collaborators except library
// and feedback may be nil, in which case their sub-records stay absent.
func NewAggregator(
	library mediaserver.Client,
	statser stats.Statser,
	requester requests.Requester,
	radarr, sonarr arr.Arrer,
	feedbackSource FeedbackSource,
) *Aggregator {
	return &Aggregator{
		library:   library,
		stats:     statser,
		requester: requester,
		radarr:    radarr,
		sonarr:    sonarr,
		feedback:  feedbackSource,
		cache:     gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Build assembles one MediaItem per title of the given media type.
// An unreachable library server fails the whole build; any other missing
// source only leaves its sub-record nil.
func (a *Aggregator) Build(ctx context.Context, mediaType media.MediaType) ([]media.MediaItem, error) {
	libraryItems, err := a.library.ListItems(ctx, mediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to list library items: %w", err)
	}

	var (
		arrItems       []arr.Item
		activeRequests map[int32]requests.Request
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		arrItems = a.arrItems(gctx, mediaType)
		return nil
	})
	g.Go(func() error {
		activeRequests = a.activeRequests(gctx, mediaType)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	arrByCatalog := make(map[int32]arr.Item, len(arrItems))
	for _, item := range arrItems {
		switch mediaType {
		case media.MediaTypeMovie:
			if item.TmdbID != 0 {
				arrByCatalog[item.TmdbID] = item
			}
		case media.MediaTypeTV:
			if item.TvdbID != 0 {
				arrByCatalog[item.TvdbID] = item
			}
		}
	}

	titleKeys := make([]string, 0, len(libraryItems))
	for _, item := range libraryItems {
		titleKeys = append(titleKeys, item.TitleKey)
	}
	marks := a.feedbackMarks(ctx, titleKeys)

	mediaItems := make([]media.MediaItem, 0, len(libraryItems))
	for _, libItem := range libraryItems {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		item := media.MediaItem{
			TitleKey:  libItem.TitleKey,
			MediaType: mediaType,
			Title:     libItem.Title,
			Year:      libItem.Year,
			Library: &media.LibraryInfo{
				PlayCount:    libItem.PlayCount,
				LastPlayedAt: libItem.LastPlayedAt,
				AddedAt:      libItem.AddedAt,
				FileSize:     libItem.FileSize,
				PosterURL:    libItem.PosterURL,
				TmdbID:       libItem.TmdbID,
				TvdbID:       libItem.TvdbID,
			},
		}

		catalogID := libItem.TmdbID
		if mediaType == media.MediaTypeTV {
			catalogID = libItem.TvdbID
		}

		if arrItem, ok := arrByCatalog[catalogID]; ok && catalogID != 0 {
			item.Arr = &media.ArrInfo{
				ArrID:          arrItem.ArrID,
				Monitored:      arrItem.Monitored,
				OnDisk:         arrItem.OnDisk,
				SizeOnDisk:     arrItem.SizeOnDisk,
				QualityProfile: arrItem.QualityProfile,
				Ended:          arrItem.Ended,
				Seasons:        arrItem.Seasons,
			}
		}

		if req, ok := activeRequests[catalogID]; ok && catalogID != 0 {
			item.Request = &media.RequestInfo{
				Requested:   true,
				RequestedBy: req.RequestedBy,
				RequestedAt: req.RequestedAt,
			}
		}

		if a.stats != nil {
			itemStats, err := a.stats.ItemStats(ctx, libItem.TitleKey)
			if err != nil {
				log.Debug("Failed to get playback stats for item", "title", libItem.Title, "error", err)
			} else if itemStats != nil {
				item.Playback = &media.PlaybackInfo{
					PlayCount:    itemStats.PlayCount,
					LastPlayedAt: itemStats.LastPlayedAt,
					TotalRuntime: itemStats.TotalRuntime,
				}
			}
		}

		if titleMarks, ok := marks[libItem.TitleKey]; ok && len(titleMarks) > 0 {
			info := feedback.Score(titleMarks)
			item.Feedback = &info
		}

		mediaItems = append(mediaItems, item)
	}

	log.Info("Media items aggregated", "mediaType", mediaType, "count", len(mediaItems))
	return mediaItems, nil
}

// arrItems returns the download manager's titles for the media type, using
// the cache when fresh. Collaborator failures degrade to absent data.
func (a *Aggregator) arrItems(ctx context.Context, mediaType media.MediaType) []arr.Item {
	var arrer arr.Arrer
	switch mediaType {
	case media.MediaTypeMovie:
		arrer = a.radarr
	case media.MediaTypeTV:
		arrer = a.sonarr
	}
	if arrer == nil {
		return nil
	}

	cacheKey := "arr_items_" + string(mediaType)
	if cached, found := a.cache.Get(cacheKey); found {
		if items, ok := cached.([]arr.Item); ok {
			return items
		}
	}

	items, err := arrer.Items(ctx)
	if err != nil {
		log.Warn("Failed to get download manager items, continuing without them", "mediaType", mediaType, "error", err)
		return nil
	}
	a.cache.Set(cacheKey, items, gocache.DefaultExpiration)
	return items
}

// activeRequests returns the request tracker's active requests for the media
// type, using the cache when fresh. Collaborator failures degrade to absent
// data.
func (a *Aggregator) activeRequests(ctx context.Context, mediaType media.MediaType) map[int32]requests.Request {
	if a.requester == nil {
		return nil
	}

	cacheKey := "active_requests_" + string(mediaType)
	if cached, found := a.cache.Get(cacheKey); found {
		if reqs, ok := cached.(map[int32]requests.Request); ok {
			return reqs
		}
	}

	reqs, err := a.requester.ActiveRequests(ctx, mediaType)
	if err != nil {
		log.Warn("Failed to get active requests, continuing without them", "mediaType", mediaType, "error", err)
		return nil
	}
	a.cache.Set(cacheKey, reqs, gocache.DefaultExpiration)
	return reqs
}

func (a *Aggregator) feedbackMarks(ctx context.Context, titleKeys []string) map[string][]feedback.Mark {
	if a.feedback == nil {
		return nil
	}
	marks, err := a.feedback.MarksFor(ctx, titleKeys)
	if err != nil {
		log.Warn("Failed to get feedback marks, continuing without them", "error", err)
		return nil
	}
	return marks
}

// ClearCache drops all cached collaborator responses so the next build
// fetches fresh data.
func (a *Aggregator) ClearCache() {
	a.cache.Flush()
}
