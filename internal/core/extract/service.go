package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storyboard/internal/browser"
	"storyboard/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// StoryboardRow is one extracted record: a shot index plus two free-text
// prompt fields. Shot numbers come from noisy page text and are not
// guaranteed unique or contiguous.
type StoryboardRow struct {
	ShotNumber     int
	KeyframePrompt string
	VideoPrompt    string
}

// ErrNoContent means every extraction strategy came up empty.
var ErrNoContent = errors.New("no extraction strategy produced content")

// Canonical output header, also used when synthesizing a header for
// free-text results that lack one.
const (
	HeaderShot     = "分镜"
	HeaderKeyframe = "关键帧图片生成提示词"
	HeaderVideo    = "图生视频提示词"
)

var canonicalHeader = HeaderShot + "\t" + HeaderKeyframe + "\t" + HeaderVideo

type Service struct {
	log *logger.Logger
}

func NewService() *Service {
	return &Service{log: logger.New("ResultExtractor")}
}

// Extract reads the generated result off the page and returns it as raw
// candidate text, trying strategies in strict fallback order. The first
// strategy yielding non-empty content wins; nothing is scored or merged.
func (s *Service) Extract(d browser.Driver) (string, error) {
	// Strategy 1: structured scan of the last HTML table
	if n := d.TableCount(); n > 0 {
		html, err := d.HTML()
		if err == nil {
			if rows := s.scanLastTable(html); len(rows) > 0 {
				s.log.LogSuccessf("table scan yielded %d rows", len(rows))
				return Serialize(rows), nil
			}
		}
		s.log.LogWarn("table scan yielded no usable rows")
	}

	// Strategy 2: results-table container text
	if text, err := d.InnerText(browser.RoleResultsTable); err == nil && strings.TrimSpace(text) != "" {
		s.log.LogSuccess("results container text captured")
		return text, nil
	}

	// Strategy 3: most recent model turn text
	if text, err := d.InnerText(browser.RoleLastTurn); err == nil && strings.TrimSpace(text) != "" {
		s.log.LogSuccess("last turn text captured")
		return text, nil
	}

	// Strategy 4: walk up from any element containing the domain keyword
	if text, err := d.AnchorText(HeaderShot); err == nil && strings.TrimSpace(text) != "" {
		s.log.LogSuccess("keyword ancestor text captured")
		return text, nil
	}

	s.log.LogWarnf("all strategies failed: title=%q tables=%d keyword_hits=%d",
		d.Title(), d.TableCount(), keywordHits(d))
	return "", ErrNoContent
}

// keywordHits counts occurrences of the storyboard keyword in the page
// snapshot, a cheap signal for whether a result rendered at all.
func keywordHits(d browser.Driver) int {
	html, err := d.HTML()
	if err != nil {
		return 0
	}
	return strings.Count(html, HeaderShot)
}

// scanLastTable parses the last <table> in the page snapshot into rows.
// Header cells are classified by substring into shot/keyframe/video roles,
// defaulting to positional columns 0/1/2 when no keyword matches.
func (s *Service) scanLastTable(html string) []StoryboardRow {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	table := doc.Find("table").Last()
	trs := table.Find("tr")
	if trs.Length() < 2 {
		return nil
	}

	var headers []string
	trs.First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})

	shotIdx, keyframeIdx, videoIdx := classifyColumns(headers)

	var rows []StoryboardRow
	trs.Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		var cells []string
		tr.Find("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		maxIdx := shotIdx
		if keyframeIdx > maxIdx {
			maxIdx = keyframeIdx
		}
		if videoIdx > maxIdx {
			maxIdx = videoIdx
		}
		if len(cells) <= maxIdx {
			return
		}

		shotNumber := i // ordinal fallback: body row position
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
	})
	return rows
}

// classifyColumns maps header cells to logical roles by keyword, with
// positional defaults for anything unmatched.
func classifyColumns(headers []string) (shotIdx, keyframeIdx, videoIdx int) {
	shotIdx, keyframeIdx, videoIdx = -1, -1, -1
	for i, header := range headers {
		h := strings.ReplaceAll(strings.ToLower(header), " ", "")
		switch {
		case strings.Contains(h, "分镜"):
			shotIdx = i
		case strings.Contains(h, "关键帧") || strings.Contains(h, "图片生成"):
			keyframeIdx = i
		case strings.Contains(h, "图生视频") || strings.Contains(h, "视频"):
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

// Serialize renders rows in the canonical tab-separated form consumed by
// the text parser and kept as the raw content of an analysis result.
func Serialize(rows []StoryboardRow) string {
	var b strings.Builder
	b.WriteString(canonicalHeader)
	b.WriteByte('\n')
	for _, row := range rows {
		fmt.Fprintf(&b, "%s%d\t%s\t%s\n", HeaderShot, row.ShotNumber, row.KeyframePrompt, row.VideoPrompt)
	}
	return b.String()
}
