// Package media defines the fused per-title record built for each scan.
// The subpackages hold the collaborator contracts and their client
// implementations; the engine assembles MediaItems from them.
package media

import (
	"time"

	"github.com/curatarr/curatarr/internal/feedback"
)

// MediaType represents the type of media, either a movie or a TV series.
type MediaType string

const (
	// MediaTypeMovie represents movies.
	MediaTypeMovie MediaType = "movie"
	// MediaTypeTV represents TV series.
	MediaTypeTV MediaType = "tv"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == MediaTypeMovie || t == MediaTypeTV
}

// MediaItem is the unified in-memory record for one title, assembled per scan.
// Each source contributes an optional sub-record: a nil sub-record means the
// source had no data for the title (or isn't configured), which is distinct
// from zero values.
type MediaItem struct {
	// TitleKey is the stable identifier of the title in the library server.
	TitleKey  string
	MediaType MediaType
	Title     string
	Year      int32

	Library  *LibraryInfo
	Playback *PlaybackInfo
	Request  *RequestInfo
	Arr      *ArrInfo
	Feedback *feedback.Info
}

// LibraryInfo holds the library server's view of a title.
type LibraryInfo struct {
	PlayCount    int32
	LastPlayedAt *time.Time
	AddedAt      *time.Time
	FileSize     int64
	PosterURL    string
	TmdbID       int32
	TvdbID       int32
}

// PlaybackInfo holds playback statistics from the watch-history service.
type PlaybackInfo struct {
	PlayCount    int32
	LastPlayedAt *time.Time
	TotalRuntime int64 // accumulated playback seconds
}

// RequestInfo holds the request-tracker's view of a title.
type RequestInfo struct {
	Requested   bool
	RequestedBy string
	RequestedAt *time.Time
}

// ArrInfo holds the download manager's view of a title.
type ArrInfo struct {
	ArrID          int32
	Monitored      bool
	OnDisk         bool
	SizeOnDisk     int64
	QualityProfile string
	// Ended is only meaningful for series.
	Ended bool
	// Seasons is only meaningful for series.
	Seasons int32
}

// PlayCount returns the best known play count, preferring the watch-history
// service over the library server.
func (m *MediaItem) PlayCount() (int32, bool) {
	if m.Playback != nil {
		return m.Playback.PlayCount, true
	}
	if m.Library != nil {
		return m.Library.PlayCount, true
	}
	return 0, false
}

// LastPlayedAt returns the best known last-played time. The second return
// value is false if no source knows about playback at all; a nil time with
// true means the title is known to have never been played.
func (m *MediaItem) LastPlayedAt() (*time.Time, bool) {
	if m.Playback != nil {
		return m.Playback.LastPlayedAt, true
	}
	if m.Library != nil {
		return m.Library.LastPlayedAt, true
	}
	return nil, false
}

// FileSize returns the best known size on disk.
func (m *MediaItem) FileSize() (int64, bool) {
	if m.Arr != nil && m.Arr.SizeOnDisk > 0 {
		return m.Arr.SizeOnDisk, true
	}
	if m.Library != nil {
		return m.Library.FileSize, true
	}
	return 0, false
}

// Requested reports whether the title has an active request.
func (m *MediaItem) Requested() bool {
	return m.Request != nil && m.Request.Requested
}

// KeepForever reports whether any user marked the title keep_forever.
func (m *MediaItem) KeepForever() bool {
	return m.Feedback != nil && m.Feedback.KeepForever
}
