package queue

import (
	"strings"
	"time"

	"storyboard/internal/logger"

	"github.com/gocolly/colly"
)

// TitleEnricher resolves a page title for queue rows that carry a URL but no
// title. Strictly best-effort: any failure returns an empty string and the
// caller falls back to a placeholder.
type TitleEnricher struct {
	log *logger.Logger
}

func NewTitleEnricher() *TitleEnricher {
	return &TitleEnricher{log: logger.New("TitleEnricher")}
}

func (e *TitleEnricher) Lookup(url string) string {
	c := colly.NewCollector()
	c.SetRequestTimeout(10 * time.Second)

	var title string
	c.OnHTML("title", func(el *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(el.Text)
		}
	})

	if err := c.Visit(url); err != nil {
		e.log.LogDebugf("title lookup failed for %s: %v", url, err)
		return ""
	}
	return title
}
