package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/media"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		criteria  string
		mediaType media.MediaType
		wantErr   string
	}{
		{
			name:      "simple condition",
			criteria:  `{"condition":{"attribute":"play_count","operator":"eq","value":0}}`,
			mediaType: media.MediaTypeMovie,
		},
		{
			name: "and group with age condition",
			criteria: `{"group":{"op":"and","children":[
				{"condition":{"attribute":"play_count","operator":"eq","value":0}},
				{"condition":{"attribute":"added_at","operator":"older_than","value":180}}
			]}}`,
			mediaType: media.MediaTypeMovie,
		},
		{
			name: "not group",
			criteria: `{"group":{"op":"not","children":[
				{"condition":{"attribute":"requested","operator":"is_true"}}
			]}}`,
			mediaType: media.MediaTypeMovie,
		},
		{
			name:      "unknown attribute",
			criteria:  `{"condition":{"attribute":"bogus","operator":"eq","value":1}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "unknown attribute",
		},
		{
			name:      "tv only attribute in movie rule",
			criteria:  `{"condition":{"attribute":"seasons","operator":"gte","value":3}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "only valid for tv rules",
		},
		{
			name:      "tv only attribute in tv rule",
			criteria:  `{"condition":{"attribute":"seasons","operator":"gte","value":3}}`,
			mediaType: media.MediaTypeTV,
		},
		{
			name:      "operator invalid for attribute kind",
			criteria:  `{"condition":{"attribute":"title","operator":"gt","value":"a"}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "not valid for attribute",
		},
		{
			name:      "older_than requires number",
			criteria:  `{"condition":{"attribute":"added_at","operator":"older_than","value":"soon"}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "requires a number of days",
		},
		{
			name:      "in requires non-empty list",
			criteria:  `{"condition":{"attribute":"quality_profile","operator":"in","value":[]}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "non-empty list",
		},
		{
			name:      "is_true takes no value",
			criteria:  `{"condition":{"attribute":"monitored","operator":"is_true","value":true}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "takes no value",
		},
		{
			name:      "not group with two children",
			criteria:  `{"group":{"op":"not","children":[{"condition":{"attribute":"play_count","operator":"eq","value":0}},{"condition":{"attribute":"year","operator":"eq","value":2000}}]}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "exactly one child",
		},
		{
			name:      "empty and group",
			criteria:  `{"group":{"op":"and","children":[]}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "at least one child",
		},
		{
			name:      "node with neither group nor condition",
			criteria:  `{}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "must contain a group or a condition",
		},
		{
			name:      "string scalar for number attribute",
			criteria:  `{"condition":{"attribute":"year","operator":"gte","value":"2000"}}`,
			mediaType: media.MediaTypeMovie,
			wantErr:   "expected a number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse([]byte(tt.criteria), tt.mediaType)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, root)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	criteria := `{"group":{"op":"and","children":[
		{"condition":{"attribute":"play_count","operator":"eq","value":0}},
		{"condition":{"attribute":"added_at","operator":"older_than","value":180}}
	]}}`

	root, err := Parse([]byte(criteria), media.MediaTypeMovie)
	require.NoError(t, err)

	data, err := Marshal(root)
	require.NoError(t, err)

	again, err := Parse(data, media.MediaTypeMovie)
	require.NoError(t, err)
	assert.Equal(t, root, again)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(""))
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.Error(t, ValidateSchedule("every tuesday"))
	assert.Error(t, ValidateSchedule("0 3 * *"))
}
