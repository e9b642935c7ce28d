package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjectRecordNormalizesDates(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"rfc3339", `"2025-03-01T10:20:30.123+02:00"`, "2025-03-01T08:20:30Z"},
		{"sqlite", `"2025-03-01 10:20:30"`, "2025-03-01T10:20:30Z"},
		{"date only", `"2025-03-01"`, "2025-03-01T00:00:00Z"},
		{"unix seconds", `1740824430`, "2025-03-01T10:20:30Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"id":"p1","user_id":"u1","name":"Demo","created_at":` + tt.in + `,"updated_at":` + tt.in + `}`
			rec, err := ParseProjectRecord([]byte(raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.CreatedAt)
			assert.Equal(t, tt.want, rec.UpdatedAt)
		})
	}
}

func TestParseProjectRecordRejectsBadDate(t *testing.T) {
	_, err := ParseProjectRecord([]byte(`{"id":"p1","user_id":"u1","name":"Demo","created_at":"yesterday","updated_at":true}`))
	codes := issueCodes(t, err)
	assert.Equal(t, CodeInvalidType, codes["created_at"])
	assert.Equal(t, CodeInvalidType, codes["updated_at"])
}

func TestParseCreateProject(t *testing.T) {
	body, err := ParseCreateProject(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectName, body.Name)

	body, err = ParseCreateProject([]byte(`{"name":"Trailer"}`))
	require.NoError(t, err)
	assert.Equal(t, "Trailer", body.Name)

	_, err = ParseCreateProject([]byte(`{"name":""}`))
	assert.Equal(t, CodeTooSmall, issueCodes(t, err)["name"])

	_, err = ParseCreateProject([]byte(`{"name":"` + strings.Repeat("x", 121) + `"}`))
	assert.Equal(t, CodeTooBig, issueCodes(t, err)["name"])
}

func TestParsePatchProject(t *testing.T) {
	body, err := ParsePatchProject([]byte(`{"name":null,"timeline":{"tracks":[]},"textBinItems":null}`))
	require.NoError(t, err)
	assert.Nil(t, body.Name)
	assert.JSONEq(t, `{"tracks":[]}`, string(body.Timeline))
	assert.Nil(t, body.TextBinItems)

	_, err = ParsePatchProject([]byte(`{"timeline":[],"textBinItems":{}}`))
	codes := issueCodes(t, err)
	assert.Equal(t, CodeInvalidType, codes["timeline"])
	assert.Equal(t, CodeInvalidType, codes["textBinItems"])
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("abc", "id"))
	assert.Error(t, ValidateID("", "id"))
	assert.Error(t, ValidateID(strings.Repeat("a", 129), "id"))
}
