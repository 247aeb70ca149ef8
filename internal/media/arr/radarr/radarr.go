// Package radarr implements the movie download-manager collaborator.
package radarr

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	radarrAPI "github.com/devopsarr/radarr-go/radarr"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/media/arr"
)

var _ arr.Arrer = (*Radarr)(nil)

// Radarr wraps the Radarr API client.
type Radarr struct {
	client *radarrAPI.APIClient
	cfg    *config.RadarrConfig
}

// New creates a new Radarr collaborator from the given configuration.
func New(cfg *config.RadarrConfig) *Radarr {
	rcfg := radarrAPI.NewConfiguration()

	// Don't modify the original config URL, work with a copy
	url := cfg.URL
	if strings.HasPrefix(url, "http://") {
		rcfg.Scheme = "http"
		url = strings.TrimPrefix(url, "http://")
	} else if strings.HasPrefix(url, "https://") {
		rcfg.Scheme = "https"
		url = strings.TrimPrefix(url, "https://")
	}
	rcfg.Host = url

	return &Radarr{
		client: radarrAPI.NewAPIClient(rcfg),
		cfg:    cfg,
	}
}

func (r *Radarr) authCtx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(
		ctx,
		radarrAPI.ContextAPIKeys,
		map[string]radarrAPI.APIKey{
			"X-Api-Key": {Key: r.cfg.APIKey},
		},
	)
}

// Items returns all movies managed by Radarr.
func (r *Radarr) Items(ctx context.Context) ([]arr.Item, error) {
	profiles, err := r.qualityProfileNames(ctx)
	if err != nil {
		// Quality profile names are cosmetic, items are still usable without them.
		log.Warn("Failed to get radarr quality profiles", "error", err)
		profiles = map[int32]string{}
	}

	movies, resp, err := r.client.MovieAPI.ListMovie(r.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list radarr movies: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	items := make([]arr.Item, 0, len(movies))
	for _, movie := range movies {
		items = append(items, arr.Item{
			ArrID:          movie.GetId(),
			Title:          movie.GetTitle(),
			TmdbID:         movie.GetTmdbId(),
			Monitored:      movie.GetMonitored(),
			OnDisk:         movie.GetHasFile(),
			SizeOnDisk:     movie.GetSizeOnDisk(),
			QualityProfile: profiles[movie.GetQualityProfileId()],
		})
	}
	return items, nil
}

// DeleteFiles removes a movie from Radarr including its files on disk.
func (r *Radarr) DeleteFiles(ctx context.Context, arrID int32) (bool, error) {
	resp, err := r.client.MovieAPI.DeleteMovie(r.authCtx(ctx), arrID).
		DeleteFiles(true).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to delete radarr movie %d: %w", arrID, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	return true, nil
}

func (r *Radarr) qualityProfileNames(ctx context.Context) (map[int32]string, error) {
	profiles, resp, err := r.client.QualityProfileAPI.ListQualityProfile(r.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list radarr quality profiles: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	names := make(map[int32]string, len(profiles))
	for _, profile := range profiles {
		names[profile.GetId()] = profile.GetName()
	}
	return names, nil
}
