package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "My Video", "My Video"},
		{"hashtag trail dropped", "旅行日记 #vlog #4k", "旅行日记"},
		{"channel suffix dropped", "Epic Short | Some Channel", "Epic Short"},
		{"youtube suffix dropped", "Epic Short - YouTube", "Epic Short"},
		{"year suffix dropped", "Old Film (2023)", "Old Film"},
		{"bracketed suffix dropped", "开场预告【官方首发】", "开场预告"},
		{"illegal characters removed", `a<b>c:d"e?f*g`, "abcdefg"},
		{"pipe starts a channel suffix", `a<b>c:d"e?f*g|h`, "abcdefg"},
		{"slashes become spaces", `dir/sub\name`, "dir sub name"},
		{"accents folded", "Café Déjà", "Cafe Deja"},
		{"spaces collapsed", "too    many   spaces", "too many spaces"},
		{"surrounding dots trimmed", ".hidden.", "hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilenameNeverEmpty(t *testing.T) {
	assert.True(t, strings.HasPrefix(SanitizeFilename(""), "invalid_filename_"))
	assert.True(t, strings.HasPrefix(SanitizeFilename("   "), "invalid_filename_"))
	// Everything stripped away: a timestamped default takes over
	assert.True(t, strings.HasPrefix(SanitizeFilename(`???***:::`), "video_"))
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("长", 150)
	got := SanitizeFilename(long)
	assert.LessOrEqual(t, len([]rune(got)), maxFilenameLength)
	assert.NotEmpty(t, got)
}
