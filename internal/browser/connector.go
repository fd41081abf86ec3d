package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyboard/internal/logger"

	"github.com/playwright-community/playwright-go"
)

var (
	// ErrConnection marks control API transport failures or non-success
	// responses. Fatal to the whole run.
	ErrConnection = errors.New("browser control api connection failed")
	// ErrProtocol marks a control API response with no debugging endpoint.
	// Fatal to the whole run.
	ErrProtocol = errors.New("browser control api response missing debug endpoint")
	// ErrNavigation marks a page that never reached an interactive state.
	ErrNavigation = errors.New("navigation timeout")
)

type openRequest struct {
	ID string `json:"id"`
}

type openResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    struct {
		WS string `json:"ws"`
	} `json:"data"`
}

// Connector opens a window in an externally managed browser through its
// local control API and attaches to it over CDP.
type Connector struct {
	log     *logger.Logger
	apiURL  string
	client  *http.Client
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewConnector(apiURL string) *Connector {
	return &Connector{
		log:    logger.New("BrowserConnector"),
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Connect requests a window for sessionID, attaches over CDP and returns a
// session that owns exactly one live page with the stealth countermeasures
// installed. One-shot per run: any failure here aborts the batch.
func (c *Connector) Connect(ctx context.Context, sessionID string, policy DelayPolicy) (*Session, error) {
	endpoint, err := c.openWindow(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.log.LogSuccessf("debug endpoint acquired for window %s", sessionID)

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: playwright run: %v", ErrConnection, err)
	}
	c.pw = pw

	browser, err := pw.Chromium.ConnectOverCDP(endpoint)
	if err != nil {
		_ = pw.Stop()
		c.pw = nil
		return nil, fmt.Errorf("%w: connect over cdp: %v", ErrConnection, err)
	}
	c.browser = browser

	contexts := browser.Contexts()
	var browserCtx playwright.BrowserContext
	if len(contexts) > 0 {
		browserCtx = contexts[0]
	} else {
		browserCtx, err = browser.NewContext()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%w: new context: %v", ErrConnection, err)
		}
	}

	// Exactly one live page per session
	pages := browserCtx.Pages()
	var page playwright.Page
	if len(pages) > 0 {
		page = pages[0]
		for _, extra := range pages[1:] {
			_ = extra.Close()
		}
	} else {
		page, err = browserCtx.NewPage()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%w: new page: %v", ErrConnection, err)
		}
	}

	// Countermeasures are best-effort: failures do not abort the session
	if err := browserCtx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		c.log.LogWarnf("stealth script install failed, continuing: %v", err)
	} else {
		c.log.LogSuccess("stealth countermeasures installed")
	}

	return newSession(page, policy), nil
}

func (c *Connector) openWindow(ctx context.Context, sessionID string) (string, error) {
	body, _ := json.Marshal(openRequest{ID: sessionID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/browser/open", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrConnection, err)
	}

	var parsed openResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed response %q: %v", ErrProtocol, string(raw), err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("%w: open window refused (%s), response: %s", ErrConnection, parsed.Msg, string(raw))
	}
	if parsed.Data.WS == "" {
		return "", fmt.Errorf("%w: response: %s", ErrProtocol, string(raw))
	}
	return parsed.Data.WS, nil
}

// Close detaches the CDP session. The browser window itself stays open, it
// belongs to the external control API.
func (c *Connector) Close() {
	if c.pw != nil {
		if err := c.pw.Stop(); err != nil {
			c.log.LogWarnf("playwright stop: %v", err)
		}
		c.pw = nil
		c.browser = nil
	}
}
