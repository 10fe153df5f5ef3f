package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeText_UnderLimit(t *testing.T) {
	text := ComposeText("🧵 ", "short summary", 300)

	assert.Equal(t, "🧵 short summary", text)
}

func TestComposeText_TruncatesAndKeepsPrefix(t *testing.T) {
	body := strings.Repeat("feedback ", 100)

	text := ComposeText("🧵 ", body, 300)

	assert.Equal(t, 300, utf8.RuneCountInString(text))
	assert.True(t, strings.HasPrefix(text, "🧵 "))
	assert.True(t, strings.HasSuffix(text, "…"))
}

func TestComposeText_ExactLimitNotTruncated(t *testing.T) {
	body := strings.Repeat("x", 298)

	text := ComposeText("🧵 ", body, 300)

	assert.Equal(t, 300, utf8.RuneCountInString(text))
	assert.False(t, strings.HasSuffix(text, "…"))
}

func TestComposeText_MultibyteBoundary(t *testing.T) {
	// Truncation counts runes, not bytes, so a multibyte body must not be
	// cut mid-character.
	body := strings.Repeat("é", 400)

	text := ComposeText("", body, 300)

	assert.Equal(t, 300, utf8.RuneCountInString(text))
	assert.True(t, utf8.ValidString(text))
}

func TestNewAnnotation_SetsIDAndTimestamps(t *testing.T) {
	parent := PostRef{URI: "at://did:plc:abc/app.bsky.feed.post/xyz", CID: "bafy123"}

	ann := NewAnnotation(parent, "summary text", []string{"c1", "c2", "c3"})

	require.NotEmpty(t, ann.ID)
	assert.Equal(t, parent, ann.ParentRef())
	assert.False(t, ann.Posted)
	assert.NotEmpty(t, ann.CreatedAt)
	assert.NotZero(t, ann.CreatedAtEpoch)
	assert.Equal(t, JSONStringArray{"c1", "c2", "c3"}, ann.SourceCommentIDs)

	other := NewAnnotation(parent, "summary text", nil)
	assert.NotEqual(t, ann.ID, other.ID)
}

func TestJSONFloat32Array_RoundTrip(t *testing.T) {
	in := JSONFloat32Array{0.25, -1.5, 3.75, 0}

	v, err := in.Value()
	require.NoError(t, err)

	var out JSONFloat32Array
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
}

func TestJSONStringArray_NilScansClean(t *testing.T) {
	var out JSONStringArray
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)

	v, err := out.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
