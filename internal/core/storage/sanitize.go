package storage

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxFilenameLength = 100

var (
	// Common video-title suffixes worth stripping before the name becomes a
	// directory: "| channel", "- YouTube", years, bracketed tags (ASCII and
	// CJK variants).
	suffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\|\s*.*$`),
		regexp.MustCompile(`\s*-\s*YouTube\s*$`),
		regexp.MustCompile(`\s*\(\d{4}\)\s*$`),
		regexp.MustCompile(`\s*\[[^\]]+\]\s*$`),
		regexp.MustCompile(`\s*\{[^}]+\}\s*$`),
		regexp.MustCompile(`\s*【[^】]+】\s*$`),
		regexp.MustCompile(`\s*「[^」]+」\s*$`),
	}

	illegalChars = regexp.MustCompile(`[?%*:|"<>\x00-\x1f]`)
	slashes      = regexp.MustCompile(`[/\\]+`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// SanitizeFilename derives a filesystem-safe base name from a raw title.
// Output never contains illegal characters, never starts or ends with a dot
// or whitespace, is at most 100 runes, and is never empty (a timestamped
// default is used as last resort).
func SanitizeFilename(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "invalid_filename_" + time.Now().Format("20060102_150405")
	}

	// Drop everything from the first '#' (hashtag trails on video titles)
	name := strings.TrimSpace(strings.SplitN(raw, "#", 2)[0])

	for _, re := range suffixPatterns {
		name = re.ReplaceAllString(name, "")
	}

	// NFKD plus combining-mark removal folds accents to their base letters
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = illegalChars.ReplaceAllString(name, "")
	name = slashes.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spaceRuns.ReplaceAllString(name, " "))

	name = strings.TrimSpace(strings.TrimSuffix(name, "."))
	name = strings.TrimSpace(strings.TrimPrefix(name, "."))

	if runes := []rune(name); len(runes) > maxFilenameLength {
		name = strings.TrimSpace(string(runes[:maxFilenameLength]))
	}

	if name == "" {
		return "video_" + time.Now().Format("20060102_150405")
	}
	return name
}
