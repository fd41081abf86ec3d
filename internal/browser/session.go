package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"storyboard/internal/logger"

	"github.com/playwright-community/playwright-go"
)

// Session is the playwright-backed Driver over the single reusable page.
type Session struct {
	log   *logger.Logger
	page  playwright.Page
	human *Humanizer
	rng   *rand.Rand
}

func newSession(page playwright.Page, policy DelayPolicy) *Session {
	return &Session{
		log:   logger.New("BrowserSession"),
		page:  page,
		human: NewHumanizer(page, policy),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Session) locate(role Role) playwright.Locator {
	loc := s.page.Locator(selectors[role])
	if role == RoleLastTurn {
		return loc.Last()
	}
	return loc.First()
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{Timeout: playwright.Float(60000)}); err != nil {
		return fmt.Errorf("%w: goto %s: %v", ErrNavigation, url, err)
	}
	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(60000),
	}); err != nil {
		return fmt.Errorf("%w: network idle %s: %v", ErrNavigation, url, err)
	}
	s.warmUp()
	return nil
}

// warmUp nudges the pointer near the viewport center and scrolls slightly
// after navigation. Failures never affect the main flow.
func (s *Session) warmUp() {
	result, err := s.page.Evaluate(`() => ({w: window.innerWidth, h: window.innerHeight})`)
	if err != nil {
		return
	}
	data, ok := result.(map[string]interface{})
	if !ok {
		return
	}
	w, h := toFloat(data["w"]), toFloat(data["h"])
	if w <= 0 || h <= 0 {
		return
	}
	cx := w/2 + float64(s.rng.Intn(201)-100)
	cy := h/2 + float64(s.rng.Intn(201)-100)
	if err := s.page.Mouse().Move(cx, cy); err != nil {
		return
	}
	time.Sleep(500 * time.Millisecond)
	_ = s.page.Mouse().Wheel(0, float64(s.rng.Intn(401)-200))
	time.Sleep(300 * time.Millisecond)
}

func (s *Session) Fill(role Role, text string) error {
	return s.human.Type(s.locate(role), text, string(role))
}

func (s *Session) Click(role Role, desc string) bool {
	return s.human.MoveAndClick(s.locate(role), desc)
}

func (s *Session) AttachFile(role Role, path string) error {
	chooser, err := s.page.ExpectFileChooser(func() error {
		if !s.Click(role, "file chooser trigger") {
			return fmt.Errorf("file chooser trigger not clickable")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("file chooser: %w", err)
	}
	return chooser.SetFiles(path)
}

func (s *Session) WaitVisible(role Role, timeout time.Duration) error {
	return s.locate(role).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (s *Session) Visible(role Role) bool {
	visible, err := s.locate(role).IsVisible()
	if err != nil {
		return false
	}
	return visible
}

func (s *Session) TableCount() int {
	n, err := s.page.Locator("table").Count()
	if err != nil {
		return 0
	}
	return n
}

func (s *Session) HTML() (string, error) {
	return s.page.Content()
}

func (s *Session) InnerText(role Role) (string, error) {
	loc := s.locate(role)
	visible, err := loc.IsVisible()
	if err != nil {
		return "", err
	}
	if !visible {
		return "", fmt.Errorf("%s not visible", role)
	}
	return loc.InnerText()
}

func (s *Session) AnchorText(keyword string) (string, error) {
	anchors := s.page.Locator("text=" + keyword)
	n, err := anchors.Count()
	if err != nil || n == 0 {
		return "", fmt.Errorf("no element containing %q", keyword)
	}
	// ancestor:: can match nested containers; the last one is the innermost
	ancestor := anchors.First().Locator("xpath=ancestor::div[contains(@class,'turn-content') or contains(@class,'model-prompt-container')]").Last()
	visible, err := ancestor.IsVisible()
	if err != nil || !visible {
		return "", fmt.Errorf("no visible ancestor for %q", keyword)
	}
	return ancestor.InnerText()
}

func (s *Session) Title() string {
	t, err := s.page.Title()
	if err != nil {
		return ""
	}
	return t
}

func (s *Session) Sleep() { s.human.Sleep() }

func (s *Session) Pause(min, max time.Duration) { s.human.Pause(min, max) }
