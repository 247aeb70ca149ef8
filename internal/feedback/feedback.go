// Package feedback derives a retention signal from user-submitted marks on a title.
package feedback

// Mark is a single user-submitted opinion about a title.
type Mark string

const (
	// MarkFinishedWatching means the user watched the title to the end.
	MarkFinishedWatching Mark = "finished_watching"
	// MarkNotInterested means the user doesn't care about the title.
	MarkNotInterested Mark = "not_interested"
	// MarkKeepForever means the title must never be deleted.
	MarkKeepForever Mark = "keep_forever"
	// MarkPoorQuality means the file should be replaced or removed.
	MarkPoorQuality Mark = "poor_quality"
	// MarkRewatchCandidate means the user plans to watch the title again.
	MarkRewatchCandidate Mark = "rewatch_candidate"
)

// Valid reports whether m is a known mark.
func (m Mark) Valid() bool {
	switch m {
	case MarkFinishedWatching, MarkNotInterested, MarkKeepForever, MarkPoorQuality, MarkRewatchCandidate:
		return true
	}
	return false
}

// markWeights maps each mark to its contribution to the feedback score.
// Negative values push a title towards deletion.
var markWeights = map[Mark]int{
	MarkFinishedWatching: -1,
	MarkNotInterested:    -2,
	MarkPoorQuality:      -2,
	MarkRewatchCandidate: 2,
	// keep_forever is not scored, it forces retention outright.
	MarkKeepForever: 0,
}

// Info is the aggregated feedback for a single title across all users.
type Info struct {
	// Score is the sum of all mark weights. Lower means better deletion candidate.
	Score int
	// KeepForever is set if any user marked the title keep_forever.
	// It forces retention regardless of Score.
	KeepForever bool
	// MarkCounts holds how many users submitted each mark.
	MarkCounts map[Mark]int
}

// Score aggregates the marks of all users for one title.
func Score(marks []Mark) Info {
	info := Info{
		MarkCounts: make(map[Mark]int, len(marks)),
	}
	for _, m := range marks {
		if !m.Valid() {
			continue
		}
		info.MarkCounts[m]++
		info.Score += markWeights[m]
		if m == MarkKeepForever {
			info.KeepForever = true
		}
	}
	return info
}
