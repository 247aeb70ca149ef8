package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name            string
		marks           []Mark
		wantScore       int
		wantKeepForever bool
	}{
		{
			name:      "no marks",
			marks:     nil,
			wantScore: 0,
		},
		{
			name:      "finished watching counts against retention",
			marks:     []Mark{MarkFinishedWatching, MarkFinishedWatching},
			wantScore: -2,
		},
		{
			name:      "rewatch candidate counts towards retention",
			marks:     []Mark{MarkFinishedWatching, MarkRewatchCandidate},
			wantScore: 1,
		},
		{
			name:            "keep forever forces retention regardless of score",
			marks:           []Mark{MarkNotInterested, MarkNotInterested, MarkPoorQuality, MarkKeepForever},
			wantScore:       -6,
			wantKeepForever: true,
		},
		{
			name:      "unknown marks are ignored",
			marks:     []Mark{Mark("bogus"), MarkPoorQuality},
			wantScore: -2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Score(tt.marks)
			assert.Equal(t, tt.wantScore, info.Score)
			assert.Equal(t, tt.wantKeepForever, info.KeepForever)
		})
	}
}

func TestScoreMarkCounts(t *testing.T) {
	info := Score([]Mark{MarkFinishedWatching, MarkFinishedWatching, MarkRewatchCandidate})
	assert.Equal(t, 2, info.MarkCounts[MarkFinishedWatching])
	assert.Equal(t, 1, info.MarkCounts[MarkRewatchCandidate])
	assert.Equal(t, 0, info.MarkCounts[MarkNotInterested])
}
