// Package sonarr implements the series download-manager collaborator.
package sonarr

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	sonarrAPI "github.com/devopsarr/sonarr-go/sonarr"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/media/arr"
)

var _ arr.Arrer = (*Sonarr)(nil)

// Sonarr wraps the Sonarr API client.
type Sonarr struct {
	client *sonarrAPI.APIClient
	cfg    *config.SonarrConfig
}

// New creates a new Sonarr collaborator from the given configuration.
func New(cfg *config.SonarrConfig) *Sonarr {
	scfg := sonarrAPI.NewConfiguration()

	url := cfg.URL
	if strings.HasPrefix(url, "http://") {
		scfg.Scheme = "http"
		url = strings.TrimPrefix(url, "http://")
	} else if strings.HasPrefix(url, "https://") {
		scfg.Scheme = "https"
		url = strings.TrimPrefix(url, "https://")
	}
	scfg.Host = url

	return &Sonarr{
		client: sonarrAPI.NewAPIClient(scfg),
		cfg:    cfg,
	}
}

func (s *Sonarr) authCtx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(
		ctx,
		sonarrAPI.ContextAPIKeys,
		map[string]sonarrAPI.APIKey{
			"X-Api-Key": {Key: s.cfg.APIKey},
		},
	)
}

// Items returns all series managed by Sonarr.
func (s *Sonarr) Items(ctx context.Context) ([]arr.Item, error) {
	profiles, err := s.qualityProfileNames(ctx)
	if err != nil {
		log.Warn("Failed to get sonarr quality profiles", "error", err)
		profiles = map[int32]string{}
	}

	series, resp, err := s.client.SeriesAPI.ListSeries(s.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sonarr series: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	items := make([]arr.Item, 0, len(series))
	for _, show := range series {
		item := arr.Item{
			ArrID:          show.GetId(),
			Title:          show.GetTitle(),
			TvdbID:         show.GetTvdbId(),
			TmdbID:         show.GetTmdbId(),
			Monitored:      show.GetMonitored(),
			QualityProfile: profiles[show.GetQualityProfileId()],
			Ended:          show.GetEnded(),
		}
		if statistics, ok := show.GetStatisticsOk(); ok {
			item.SizeOnDisk = statistics.GetSizeOnDisk()
			item.Seasons = statistics.GetSeasonCount()
			item.OnDisk = statistics.GetSizeOnDisk() > 0
		}
		items = append(items, item)
	}
	return items, nil
}

// DeleteFiles removes a series from Sonarr including its files on disk.
func (s *Sonarr) DeleteFiles(ctx context.Context, arrID int32) (bool, error) {
	resp, err := s.client.SeriesAPI.DeleteSeries(s.authCtx(ctx), arrID).
		DeleteFiles(true).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to delete sonarr series %d: %w", arrID, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	return true, nil
}

func (s *Sonarr) qualityProfileNames(ctx context.Context) (map[int32]string, error) {
	profiles, resp, err := s.client.QualityProfileAPI.ListQualityProfile(s.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sonarr quality profiles: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	names := make(map[int32]string, len(profiles))
	for _, profile := range profiles {
		names[profile.GetId()] = profile.GetName()
	}
	return names, nil
}
