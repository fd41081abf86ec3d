package analyze

import (
	"context"
	"errors"
	"testing"
	"time"

	"storyboard/internal/browser"
	"storyboard/internal/config"
	"storyboard/internal/core/extract"
	"storyboard/internal/core/job"
	"storyboard/internal/core/queue"
	"storyboard/internal/core/storage"
	"storyboard/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeContent = "分镜\t关键帧图片生成提示词\t图生视频提示词\n" +
	"分镜1\t雪后的庭院\t镜头缓慢推进\n"

// fakeDriver scripts the page: which roles are visible, how many times the
// error badge shows up, which navigations fail. Delays are no-ops.
type fakeDriver struct {
	navErrs    []error // consumed one per Navigate call
	visible    map[browser.Role]bool
	errorShows int // error badge reads true this many times
	content    string

	fills       []string
	clicks      []browser.Role
	attached    []string
	errorChecks int
	pauses      int
}

func newFakeDriver(content string) *fakeDriver {
	return &fakeDriver{
		visible: map[browser.Role]bool{browser.RoleRunButton: true},
		content: content,
	}
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	if len(f.navErrs) > 0 {
		err := f.navErrs[0]
		f.navErrs = f.navErrs[1:]
		return err
	}
	return nil
}

func (f *fakeDriver) Fill(role browser.Role, text string) error {
	f.fills = append(f.fills, text)
	return nil
}

func (f *fakeDriver) Click(role browser.Role, desc string) bool {
	f.clicks = append(f.clicks, role)
	return true
}

func (f *fakeDriver) AttachFile(role browser.Role, path string) error {
	f.attached = append(f.attached, path)
	return nil
}

func (f *fakeDriver) WaitVisible(role browser.Role, timeout time.Duration) error {
	if f.visible[role] {
		return nil
	}
	return errors.New("not visible")
}

func (f *fakeDriver) Visible(role browser.Role) bool {
	if role == browser.RoleErrorBadge {
		f.errorChecks++
		return f.errorChecks <= f.errorShows
	}
	return f.visible[role]
}

func (f *fakeDriver) TableCount() int       { return 0 }
func (f *fakeDriver) HTML() (string, error) { return "", nil }
func (f *fakeDriver) InnerText(role browser.Role) (string, error) {
	if role == browser.RoleResultsTable && f.content != "" {
		return f.content, nil
	}
	return "", errors.New("no such element")
}
func (f *fakeDriver) AnchorText(keyword string) (string, error) { return "", errors.New("not found") }
func (f *fakeDriver) Title() string                             { return "Untitled prompt" }
func (f *fakeDriver) Sleep()                                    {}
func (f *fakeDriver) Pause(min, max time.Duration)              { f.pauses++ }

func (f *fakeDriver) retryFills() int {
	n := 0
	for _, text := range f.fills {
		if text == retryInstruction {
			n++
		}
	}
	return n
}

type fakeRepo struct {
	items   []queue.WorkItem
	marked  []string
	markErr error
}

func (r *fakeRepo) Load(ctx context.Context) ([]queue.WorkItem, error) { return r.items, nil }
func (r *fakeRepo) MarkComplete(ctx context.Context, item queue.WorkItem) error {
	r.marked = append(r.marked, item.ID)
	return r.markErr
}

func newTestService(t *testing.T, d browser.Driver, repo queue.Repository) *Service {
	t.Helper()
	return &Service{
		log:       logger.New("AnalysisOrchestrator"),
		cfg:       config.Config{StudioURL: "https://studio.invalid/new"},
		extractor: extract.NewService(),
		store:     storage.NewService(),
		newRepository: func(kind queue.Kind, sourcePath string) (queue.Repository, error) {
			return repo, nil
		},
		connect: func(ctx context.Context, sessionID string, policy browser.DelayPolicy) (browser.Driver, func(), error) {
			return d, func() {}, nil
		},
	}
}

func youtubeItem(id string) queue.WorkItem {
	return queue.WorkItem{ID: id, Title: "测试视频" + id, MediaRef: "https://youtu.be/" + id, Kind: queue.KindYouTube, RowIndex: 2}
}

func baseRequest(t *testing.T, kind queue.Kind) Request {
	t.Helper()
	return Request{
		Kind:            kind,
		SourcePath:      "unused",
		OutputPath:      t.TempDir(),
		Prompt:          "生成分镜表",
		SessionID:       "window-1",
		MinDelaySeconds: 0,
		MaxDelaySeconds: 0.001,
	}
}

func TestRunSavesAndMarksItems(t *testing.T) {
	d := newFakeDriver(fakeContent)
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ItemsTotal)
	assert.Equal(t, 1, outcome.ItemsSaved)
	require.Len(t, outcome.PerItem, 1)
	report := outcome.PerItem[0]
	assert.Equal(t, job.ItemSaved, report.State)
	assert.False(t, report.Degraded)
	assert.FileExists(t, report.OutputPath)
	assert.Equal(t, []string{"a"}, repo.marked)

	// The URL path was exercised: prompt fill, url fill, save + run clicks
	assert.Contains(t, d.fills, "生成分镜表")
	assert.Contains(t, d.fills, "https://youtu.be/a")
	assert.Contains(t, d.clicks, browser.RoleSaveButton)
	assert.Contains(t, d.clicks, browser.RoleRunButton)
}

func TestRunLocalItemAttachesFile(t *testing.T) {
	d := newFakeDriver(fakeContent)
	d.visible[browser.RoleUploadedChunk] = true
	item := queue.WorkItem{ID: "a.mp4", Title: "a.mp4", MediaRef: "/videos/a.mp4", Kind: queue.KindLocal, RowIndex: -1}
	repo := &fakeRepo{items: []queue.WorkItem{item}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindLocal))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ItemsSaved)
	assert.Equal(t, []string{"/videos/a.mp4"}, d.attached)
	assert.False(t, outcome.PerItem[0].Degraded)
}

func TestRunUnverifiedUploadDegradesButSaves(t *testing.T) {
	d := newFakeDriver(fakeContent)
	// Uploaded-chunk confirmation never appears
	item := queue.WorkItem{ID: "a.mp4", Title: "a.mp4", MediaRef: "/videos/a.mp4", Kind: queue.KindLocal, RowIndex: -1}
	repo := &fakeRepo{items: []queue.WorkItem{item}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindLocal))
	require.NoError(t, err)

	report := outcome.PerItem[0]
	assert.Equal(t, job.ItemSaved, report.State)
	assert.True(t, report.Degraded)
	assert.NotEmpty(t, report.Warnings)
}

func TestRunContinuesAfterItemFailure(t *testing.T) {
	d := newFakeDriver(fakeContent)
	d.navErrs = []error{errors.New("net::ERR_TIMED_OUT")}
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a"), youtubeItem("b")}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.ItemsTotal)
	assert.Equal(t, 1, outcome.ItemsSaved)
	assert.Equal(t, job.ItemFailed, outcome.PerItem[0].State)
	assert.Contains(t, outcome.PerItem[0].Error, "navigate")
	assert.Equal(t, job.ItemSaved, outcome.PerItem[1].State)
	assert.Equal(t, []string{"b"}, repo.marked)
}

func TestGenerationErrorRetriesAreBounded(t *testing.T) {
	d := newFakeDriver(fakeContent)
	d.errorShows = 1000 // never recovers
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	report := outcome.PerItem[0]
	assert.Equal(t, job.ItemFailed, report.State)
	assert.Contains(t, report.Error, "after 3 retries")
	// Exactly three re-prompts, never a fourth
	assert.Equal(t, 3, d.retryFills())
	assert.Empty(t, repo.marked)
}

func TestGenerationErrorRecoveryWithinBound(t *testing.T) {
	d := newFakeDriver(fakeContent)
	d.errorShows = 2 // fails twice, then clean
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	assert.Equal(t, job.ItemSaved, outcome.PerItem[0].State)
	assert.Equal(t, 2, d.retryFills())
	assert.Equal(t, 1, outcome.ItemsSaved)
}

func TestRunEmptyExtractionFails(t *testing.T) {
	d := newFakeDriver("") // every strategy comes up empty
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	assert.Equal(t, job.ItemFailed, outcome.PerItem[0].State)
	assert.Empty(t, repo.marked)
}

func TestRunUnparsableContentSkipsNoData(t *testing.T) {
	d := newFakeDriver("模型返回了一段没有镜头标记的说明文字")
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	assert.Equal(t, job.ItemSkippedNoData, outcome.PerItem[0].State)
	assert.Equal(t, 0, outcome.ItemsSaved)
}

func TestRunMarkCompleteFailureIsNonFatal(t *testing.T) {
	d := newFakeDriver(fakeContent)
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}, markErr: errors.New("file locked")}
	s := newTestService(t, d, repo)

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)

	report := outcome.PerItem[0]
	assert.Equal(t, job.ItemSaved, report.State)
	assert.Equal(t, 1, outcome.ItemsSaved)
	assert.True(t, report.Degraded)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[len(report.Warnings)-1], "queue update failed")
}

func TestRunEmptyQueueShortCircuits(t *testing.T) {
	connected := false
	s := newTestService(t, newFakeDriver(""), &fakeRepo{})
	s.connect = func(ctx context.Context, sessionID string, policy browser.DelayPolicy) (browser.Driver, func(), error) {
		connected = true
		return nil, nil, errors.New("must not connect")
	}

	outcome, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)
	assert.False(t, connected)
	assert.Equal(t, "all items already complete", outcome.Message)
	assert.Zero(t, outcome.ItemsTotal)
}

func TestRunConnectFailureIsFatal(t *testing.T) {
	s := newTestService(t, newFakeDriver(""), &fakeRepo{items: []queue.WorkItem{youtubeItem("a")}})
	s.connect = func(ctx context.Context, sessionID string, policy browser.DelayPolicy) (browser.Driver, func(), error) {
		return nil, nil, browser.ErrConnection
	}

	_, err := s.Run(context.Background(), "job-1", baseRequest(t, queue.KindYouTube))
	assert.ErrorIs(t, err, browser.ErrConnection)
}

func TestRunHonorsCancellationBetweenItems(t *testing.T) {
	d := newFakeDriver(fakeContent)
	repo := &fakeRepo{items: []queue.WorkItem{youtubeItem("a"), youtubeItem("b")}}
	s := newTestService(t, d, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := s.Run(ctx, "job-1", baseRequest(t, queue.KindYouTube))
	require.NoError(t, err)
	assert.Equal(t, "cancelled", outcome.Message)
	assert.Empty(t, outcome.PerItem)
}

func TestWaitForCompletionImmediateWhenIndicatorAbsent(t *testing.T) {
	d := newFakeDriver("")
	s := newTestService(t, d, &fakeRepo{})

	assert.True(t, s.waitForCompletion(d))
	assert.Zero(t, d.pauses, "no poll sleep when generation already finished")
}
