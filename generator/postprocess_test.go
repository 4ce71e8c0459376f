package generator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractField_Schedule(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		wantLen int
	}{
		{
			name:    "valid",
			raw:     `{"schedules":[{"name":"킥오프 미팅","start_date":"2025-01-02","end_date":"2025-01-02","days":"1일","desc":"시작"}]}`,
			wantLen: 1,
		},
		{
			name:    "code fence",
			raw:     "```json\n{\"schedules\":[{\"name\":\"a\",\"start_date\":\"2025-01-02\",\"end_date\":\"2025-01-03\",\"days\":\"2일\",\"desc\":\"b\"}]}\n```",
			wantLen: 1,
		},
		{
			name:    "empty list passes the schema",
			raw:     `{"schedules":[]}`,
			wantLen: 0,
		},
		{
			name:    "entry missing start_date",
			raw:     `{"schedules":[{"name":"킥오프 미팅","end_date":"2025-01-02","days":"1일","desc":"시작"}]}`,
			wantErr: true,
		},
		{
			name:    "extra property",
			raw:     `{"schedules":[{"name":"a","start_date":"2025-01-02","end_date":"2025-01-02","days":"1일","desc":"b","owner":"x"}]}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			raw:     `{"schedules":"soon"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `here is your schedule`,
			wantErr: true,
		},
		{
			name:    "blank",
			raw:     "  \n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []ScheduleEntry
			err := ExtractField(tt.raw, scheduleSchema, "schedules", &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedResponse))
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestExtractField_Category(t *testing.T) {
	var n int
	require.NoError(t, ExtractField(`{"category_num": 3}`, categorySchema, "category_num", &n))
	assert.Equal(t, 3, n)

	err := ExtractField(`{"category_num": "3"}`, categorySchema, "category_num", &n)
	assert.True(t, errors.Is(err, ErrMalformedResponse))

	err = ExtractField(`{"category_num": 2.5}`, categorySchema, "category_num", &n)
	assert.True(t, errors.Is(err, ErrMalformedResponse))

	err = ExtractField(`{}`, categorySchema, "category_num", &n)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestExtractField_CuratedTerms(t *testing.T) {
	var terms []string
	require.NoError(t, ExtractField(`{"curated_terms":["미니멀","모던"]}`, curatedSchema, "curated_terms", &terms))
	assert.Equal(t, []string{"미니멀", "모던"}, terms)

	err := ExtractField(`{"curated_terms":[1,2]}`, curatedSchema, "curated_terms", &terms)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestExtractText(t *testing.T) {
	out, err := ExtractText("  부드러운 곡선이 돋보입니다.\n")
	require.NoError(t, err)
	assert.Equal(t, "  부드러운 곡선이 돋보입니다.\n", out)

	_, err = ExtractText(" \t\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestSchema_JSONSchemaIsStrict(t *testing.T) {
	doc := scheduleSchema.JSONSchema()
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []string{"schedules"}, doc["required"])

	props := doc["properties"].(map[string]any)
	list := props["schedules"].(map[string]any)
	assert.Equal(t, "array", list["type"])

	item := list["items"].(map[string]any)
	assert.Equal(t, false, item["additionalProperties"])
	assert.ElementsMatch(t, []string{"name", "start_date", "end_date", "days", "desc"}, item["required"])
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := withStage(StageSchedule, upstreamError(cause, true))

	assert.True(t, errors.Is(err, ErrUpstreamFailure))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), StageSchedule)

	plain := withStage(StageClassify, cause)
	assert.True(t, errors.Is(plain, ErrUpstreamFailure))
	assert.False(t, IsRetryable(plain))
	assert.Nil(t, withStage(StageClassify, nil))
}
