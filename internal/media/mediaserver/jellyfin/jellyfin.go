// Package jellyfin implements the library server collaborator against a
// Jellyfin instance.
package jellyfin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	jellyfin "github.com/sj14/jellyfin-go/api"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/mediaserver"
)

var _ mediaserver.Client = (*Client)(nil)

// Client provides a high-level interface for interacting with Jellyfin.
type Client struct {
	jellyfin *jellyfin.APIClient
	baseURL  string
}

// New creates a new Jellyfin client from the given configuration.
func New(cfg *config.JellyfinConfig) *Client {
	clientConfig := jellyfin.NewConfiguration()
	clientConfig.Servers = jellyfin.ServerConfigurations{
		{
			URL:         cfg.URL,
			Description: "Jellyfin server",
		},
	}
	clientConfig.DefaultHeader = map[string]string{"Authorization": fmt.Sprintf(`MediaBrowser Token="%s"`, cfg.APIKey)}
	clientConfig.UserAgent = "Curatarr"
	return &Client{
		jellyfin: jellyfin.NewAPIClient(clientConfig),
		baseURL:  cfg.URL,
	}
}

// ListItems retrieves all titles of the given media type from Jellyfin.
func (c *Client) ListItems(ctx context.Context, mediaType media.MediaType) ([]mediaserver.LibraryItem, error) {
	var itemKind jellyfin.BaseItemKind
	switch mediaType {
	case media.MediaTypeMovie:
		itemKind = jellyfin.BASEITEMKIND_MOVIE
	case media.MediaTypeTV:
		itemKind = jellyfin.BASEITEMKIND_SERIES
	default:
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	var allItems []mediaserver.LibraryItem

	// Paginate through the whole library in batches.
	startIndex := int32(0)
	limit := int32(1000)

	for {
		itemsResp, _, err := c.jellyfin.ItemsAPI.GetItems(ctx).
			Recursive(true).
			StartIndex(startIndex).
			Limit(limit).
			EnableUserData(true).
			Fields([]jellyfin.ItemFields{
				jellyfin.ITEMFIELDS_DATE_CREATED,
				jellyfin.ITEMFIELDS_MEDIA_SOURCES,
				jellyfin.ITEMFIELDS_PROVIDER_IDS,
			}).
			IncludeItemTypes([]jellyfin.BaseItemKind{itemKind}).
			Execute()
		if err != nil {
			return nil, fmt.Errorf("failed to get items from jellyfin: %w", err)
		}

		items := itemsResp.GetItems()
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			if item.Id == nil || item.GetName() == "" {
				continue
			}
			allItems = append(allItems, c.toLibraryItem(item, mediaType))
		}

		itemsLen, err := safecast.Convert[int32](len(items))
		if err != nil {
			return nil, fmt.Errorf("failed to cast items length: %w", err)
		}
		if itemsLen > 0 && startIndex+itemsLen >= itemsResp.GetTotalRecordCount() {
			break
		}
		startIndex += itemsLen
	}

	log.Debug("Retrieved items from jellyfin", "mediaType", mediaType, "count", len(allItems))
	return allItems, nil
}

// RemoveItem removes an item from the Jellyfin library by its ID.
func (c *Client) RemoveItem(ctx context.Context, titleKey string) error {
	if _, err := c.jellyfin.LibraryAPI.DeleteItem(ctx, titleKey).Execute(); err != nil {
		return fmt.Errorf("failed to remove item %s from jellyfin: %w", titleKey, err)
	}
	return nil
}

func (c *Client) toLibraryItem(item jellyfin.BaseItemDto, mediaType media.MediaType) mediaserver.LibraryItem {
	libItem := mediaserver.LibraryItem{
		TitleKey:  item.GetId(),
		MediaType: mediaType,
		Title:     item.GetName(),
		Year:      item.GetProductionYear(),
		PosterURL: fmt.Sprintf("%s/Items/%s/Images/Primary", c.baseURL, item.GetId()),
	}

	if userData, ok := item.GetUserDataOk(); ok {
		libItem.PlayCount = userData.GetPlayCount()
		if lastPlayed, ok := userData.GetLastPlayedDateOk(); ok && lastPlayed != nil {
			libItem.LastPlayedAt = lastPlayed
		}
	}

	if created, ok := item.GetDateCreatedOk(); ok && created != nil {
		libItem.AddedAt = created
	}

	for _, source := range item.GetMediaSources() {
		libItem.FileSize += source.GetSize()
	}

	providerIDs := item.GetProviderIds()
	if tmdb, ok := providerIDs["Tmdb"]; ok {
		if id, err := strconv.ParseInt(tmdb, 10, 32); err == nil {
			libItem.TmdbID = int32(id)
		}
	}
	if tvdb, ok := providerIDs["Tvdb"]; ok {
		if id, err := strconv.ParseInt(tvdb, 10, 32); err == nil {
			libItem.TvdbID = int32(id)
		}
	}

	return libItem
}
