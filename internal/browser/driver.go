package browser

import (
	"context"
	"time"
)

// Role names a UI capability the engine needs on the studio page. Keeping
// lookup behind a fixed enum lets tests supply canned elements without a
// real browser.
type Role string

const (
	RolePromptInput   Role = "prompt-input"
	RoleAttachMenu    Role = "attach-menu"
	RoleYouTubeOption Role = "youtube-option"
	RoleURLField      Role = "url-field"
	RoleSaveButton    Role = "save-button"
	RoleUploadButton  Role = "upload-button"
	RoleUploadedChunk Role = "uploaded-chunk"
	RoleRunButton     Role = "run-button"
	RoleStopButton    Role = "stop-button"
	RoleErrorBadge    Role = "error-badge"
	RoleResultsTable  Role = "results-table"
	RoleLastTurn      Role = "last-turn"
)

// selectors maps each role to its selector on the studio page.
var selectors = map[Role]string{
	RolePromptInput:   "//ms-chunk-input//textarea",
	RoleAttachMenu:    "//ms-add-chunk-menu//button/span[@class='mat-mdc-button-persistent-ripple mdc-icon-button__ripple']",
	RoleYouTubeOption: "//button[.//span[text()='YouTube Video']]",
	RoleURLField:      "//input[@aria-label='YouTube URL']",
	RoleSaveButton:    "//button[.//span[text()='Save']]",
	RoleUploadButton:  "button:has-text('Upload')",
	RoleUploadedChunk: "//ms-video-chunk",
	RoleRunButton:     "//button[contains(@class, 'run-button') and @aria-disabled='false' and not(@disabled)]",
	RoleStopButton:    "//run-button/button/div[.//text()[contains(., 'Stop')]]",
	RoleErrorBadge:    "(//ms-chat-turn)[last()]//ms-prompt-feedback/button/span[1]",
	RoleResultsTable:  ".table-container table",
	RoleLastTurn:      "div.chat-turn-container.model.render",
}

// Driver is the page capability surface the orchestrator and extractor run
// against. The production implementation is Session; tests use a fake.
type Driver interface {
	// Navigate loads the given URL and waits for network idle.
	Navigate(ctx context.Context, url string) error
	// Fill clicks the role's element human-like, clears it and assigns text.
	Fill(role Role, text string) error
	// Click moves the pointer along a synthetic trajectory and clicks.
	// Returns false (no error) when the element is not visible or has no
	// measurable bounding box.
	Click(role Role, desc string) bool
	// AttachFile triggers the role's native file chooser and supplies path.
	AttachFile(role Role, path string) error
	// WaitVisible blocks until the role's element is visible or the timeout
	// elapses.
	WaitVisible(role Role, timeout time.Duration) error
	// Visible reports element visibility; selector errors read as false.
	Visible(role Role) bool
	// TableCount reports how many <table> elements the page currently has.
	TableCount() int
	// HTML returns the full page content snapshot.
	HTML() (string, error)
	// InnerText returns the rendered text of the role's element.
	InnerText(role Role) (string, error)
	// AnchorText locates any element containing keyword, walks up to its
	// structural ancestor and returns that ancestor's text.
	AnchorText(keyword string) (string, error)
	// Title returns the page title (best effort, empty on error).
	Title() string
	// Sleep blocks for a uniformly random duration from the delay policy.
	Sleep()
	// Pause blocks for a uniformly random duration between min and max.
	Pause(min, max time.Duration)
}

// DelayPolicy bounds the random delay drawn before/after simulated actions.
// MinSeconds < MaxSeconds is enforced by the caller.
type DelayPolicy struct {
	MinSeconds float64
	MaxSeconds float64
}

// Duration draws one delay from the policy using the given uniform sample
// in [0,1).
func (p DelayPolicy) Duration(sample float64) time.Duration {
	span := p.MaxSeconds - p.MinSeconds
	return time.Duration((p.MinSeconds + sample*span) * float64(time.Second))
}
