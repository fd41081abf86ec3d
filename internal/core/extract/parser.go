package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	firstInt = regexp.MustCompile(`\d+`)

	// UI chrome the studio renders around results: single-word action button
	// labels, timing badges and the caution disclaimer.
	chromeLines = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^edit\s*$`),
		regexp.MustCompile(`(?i)^more_vert\s*$`),
		regexp.MustCompile(`(?i)^thumb_up\s*$`),
		regexp.MustCompile(`(?i)^thumb_down\s*$`),
		regexp.MustCompile(`(?i)^content_copy\s*$`),
		regexp.MustCompile(`(?i)^download\s*$`),
		regexp.MustCompile(`(?i)^Use code with caution\.\s*$`),
		regexp.MustCompile(`(?i)^\d+\.\d+s\s*$`),
	}

	shotToken    = regexp.MustCompile(`分镜\s*\d+`)
	shotRowSplit = regexp.MustCompile(`^(分镜\d+)\s+(.+)$`)
	multiSpace   = regexp.MustCompile(`\s{2,}`)
	timingBadge  = regexp.MustCompile(`^\d+\.\d+s$`)
)

// cleanText drops empty lines and known UI chrome so the row parser only
// sees table content.
func cleanText(text string) []string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chrome := false
		for _, re := range chromeLines {
			if re.MatchString(line) {
				chrome = true
				break
			}
		}
		if !chrome {
			kept = append(kept, line)
		}
	}
	return kept
}

// ParseRows turns raw candidate text into storyboard rows. It locates a
// header line by keyword co-occurrence, or synthesizes a canonical header
// above the first "分镜N" line, then splits rows on tabs, runs of spaces, or
// a shot-token prefix with a sentence-boundary split of the remainder. A row
// survives only if at least one prompt field is non-empty after trimming.
func ParseRows(text string) []StoryboardRow {
	lines := cleanText(text)
	if len(lines) == 0 {
		return nil
	}

	headerLine := ""
	headerIndex := -1
	for i, line := range lines {
		if strings.Contains(line, HeaderShot) &&
			(strings.Contains(line, "关键帧") || strings.Contains(line, "提示词") ||
				strings.Contains(line, "图片生成") || strings.Contains(line, "视频")) {
			headerLine = line
			headerIndex = i
			break
		}
	}
	if headerLine == "" {
		for i, line := range lines {
			if shotToken.MatchString(line) {
				headerLine = canonicalHeader
				headerIndex = i - 1
				break
			}
		}
		if headerLine == "" {
			return nil
		}
	}

	var headers []string
	tabSeparated := strings.Contains(headerLine, "\t")
	if tabSeparated {
		headers = strings.Split(headerLine, "\t")
	} else {
		headers = multiSpace.Split(headerLine, -1)
		if len(headers) < 3 {
			headers = strings.Fields(headerLine)
		}
	}
	trimmed := headers[:0]
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			trimmed = append(trimmed, h)
		}
	}
	headers = trimmed

	shotIdx, keyframeIdx, videoIdx := classifyTextColumns(headers)

	maxIdx := shotIdx
	if keyframeIdx > maxIdx {
		maxIdx = keyframeIdx
	}
	if videoIdx > maxIdx {
		maxIdx = videoIdx
	}

	var rows []StoryboardRow
	dataStart := headerIndex + 1
	if dataStart < 0 {
		dataStart = 0
	}
	for i := dataStart; i < len(lines); i++ {
		line := lines[i]
		if timingBadge.MatchString(line) {
			continue
		}

		var cells []string
		if tabSeparated {
			cells = strings.Split(line, "\t")
			if len(cells) == 1 {
				// synthesized headers carry tabs even when the source rows
				// collapsed to plain spaces
				cells = splitShotRow(line)
			}
		} else {
			cells = multiSpace.Split(line, -1)
			if len(cells) < 3 {
				cells = splitShotRow(line)
			}
		}
		for j := range cells {
			cells[j] = strings.TrimSpace(cells[j])
		}
		for len(cells) <= maxIdx {
			cells = append(cells, "")
		}

		shotNumber := i - dataStart + 1
		if shotIdx >= 0 && shotIdx < len(cells) {
			if m := firstInt.FindString(cells[shotIdx]); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					shotNumber = n
				}
			}
		}
		keyframe := ""
		if keyframeIdx >= 0 && keyframeIdx < len(cells) {
			keyframe = cells[keyframeIdx]
		}
		video := ""
		if videoIdx >= 0 && videoIdx < len(cells) {
			video = cells[videoIdx]
		}
		if keyframe != "" || video != "" {
			rows = append(rows, StoryboardRow{ShotNumber: shotNumber, KeyframePrompt: keyframe, VideoPrompt: video})
		}
	}
	return rows
}

// classifyTextColumns mirrors classifyColumns but with the text parser's
// stricter video-column match.
func classifyTextColumns(headers []string) (shotIdx, keyframeIdx, videoIdx int) {
	shotIdx, keyframeIdx, videoIdx = -1, -1, -1
	for i, header := range headers {
		h := strings.ReplaceAll(strings.ToLower(header), " ", "")
		switch {
		case strings.Contains(h, "分镜"):
			shotIdx = i
		case strings.Contains(h, "关键帧") || strings.Contains(h, "图片生成"):
			keyframeIdx = i
		case strings.Contains(h, "图生视频") || (strings.Contains(h, "视频") && strings.Contains(h, "图生")):
			videoIdx = i
		}
	}
	if shotIdx == -1 && len(headers) > 0 {
		shotIdx = 0
	}
	if keyframeIdx == -1 && len(headers) > 1 {
		keyframeIdx = 1
	}
	if videoIdx == -1 && len(headers) > 2 {
		videoIdx = 2
	}
	return shotIdx, keyframeIdx, videoIdx
}

// splitShotRow handles lines where cell boundaries collapsed to single
// spaces: peel off the shot token, then split the remainder at a sentence
// boundary, or at its midpoint as a last resort.
func splitShotRow(line string) []string {
	m := shotRowSplit.FindStringSubmatch(line)
	if m == nil {
		return []string{line}
	}
	rest := m[2]

	for _, sep := range []string{"。", ". ", "；"} {
		if idx := strings.Index(rest, sep); idx > 0 && idx < len(rest)-len(sep) {
			head := strings.TrimSpace(rest[:idx+len(sep)])
			tail := strings.TrimSpace(rest[idx+len(sep):])
			if tail != "" {
				return []string{m[1], head, tail}
			}
		}
	}

	runes := []rune(rest)
	if len(runes) > 100 {
		mid := len(runes) / 2
		return []string{m[1], strings.TrimSpace(string(runes[:mid])), strings.TrimSpace(string(runes[mid:]))}
	}
	return []string{m[1], rest, ""}
}
