package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/media-queue-go/internal/domain"
	"github.com/yourusername/media-queue-go/pkg/logger"
)

// fakeFetcher implements domain.Fetcher for testing
type fakeFetcher struct {
	mu      sync.Mutex
	fail    map[string]error
	gates   map[string]chan struct{}
	started chan string
	calls   []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fail:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 100),
	}
}

// hold makes Fetch for url block until the returned func is called
func (f *fakeFetcher) hold(url string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[url] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeFetcher) Probe(ctx context.Context, url string) (*domain.VideoInfo, error) {
	return &domain.VideoInfo{Title: "title " + url, Duration: "0:10"}, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, req domain.FetchRequest, onProgress func(domain.FetchProgress)) (*domain.FetchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	gate := f.gates[req.URL]
	err := f.fail[req.URL]
	f.mu.Unlock()

	onProgress(domain.FetchProgress{Phase: domain.PhaseDownloading, Filename: "video.mp4", DownloadedBytes: 50, TotalBytes: 100})
	f.started <- req.URL

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.FetchResult{Files: []string{"video.mp4"}, SizeBytes: 2048}, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// memHistoryRepo implements domain.HistoryRepository for testing
type memHistoryRepo struct {
	mu        sync.Mutex
	records   []*domain.HistoryRecord
	nextID    int64
	createErr error
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{}
}

func (m *memHistoryRepo) Create(record *domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return &domain.StoreError{Op: "create", Err: m.createErr}
	}
	m.nextID++
	record.ID = m.nextID
	m.records = append(m.records, record)
	return nil
}

func (m *memHistoryRepo) List(filter domain.HistoryFilter) ([]*domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.HistoryRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Format != "" && r.Format != filter.Format {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memHistoryRepo) Search(query string) ([]*domain.HistoryRecord, error) {
	all, _ := m.List(domain.HistoryFilter{})
	out := make([]*domain.HistoryRecord, 0)
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Title+r.URL+r.Platform), strings.ToLower(query)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memHistoryRepo) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrHistoryNotFound
}

func (m *memHistoryRepo) DeleteAll() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.records))
	m.records = nil
	return n, nil
}

func (m *memHistoryRepo) GetStats() (*domain.HistoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.HistoryStats{Total: int64(len(m.records))}
	for _, r := range m.records {
		if r.Status == domain.HistorySuccess {
			stats.Success++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

func (m *memHistoryRepo) byStatus(status domain.HistoryStatus) []*domain.HistoryRecord {
	out, _ := m.List(domain.HistoryFilter{Status: status})
	return out
}

func newTestQueue(t *testing.T, fetcher domain.Fetcher, repo domain.HistoryRepository) *QueueManager {
	t.Helper()
	config := domain.DefaultConfig().Download
	config.RetryDelay = time.Millisecond
	broadcaster := NewBroadcaster(4096, zap.NewNop())
	worker := NewDownloadManager(fetcher, &config, zap.NewNop())
	qm := NewQueueManager(worker, repo, broadcaster, nil, &config, logger.NewNopAdapter())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = qm.Shutdown(ctx)
	})
	return qm
}

func nextEvent(t *testing.T, sub *Subscription, match func(domain.Event) bool) domain.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok, "subscription closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func bufferedEvents(sub *Subscription) []domain.Event {
	var out []domain.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func waitStarted(t *testing.T, f *fakeFetcher, url string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, url, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch of %s never started", url)
	}
}

func isKind(kind domain.EventKind) func(domain.Event) bool {
	return func(ev domain.Event) bool { return ev.Kind == kind }
}

func activeCount(snap domain.QueueSnapshot) int {
	n := 0
	for _, job := range snap.Jobs {
		if job.IsActive() {
			n++
		}
	}
	return n
}

func TestQueueManager_EnqueueSkipsUnacceptedSchemes(t *testing.T) {
	qm := newTestQueue(t, newFakeFetcher(), newMemHistoryRepo())

	result, err := qm.Enqueue([]string{"https://a.example/1", "ftp://b.example/2", "https://c.example/3"}, "", "")
	require.NoError(t, err)
	assert.Len(t, result.IDs, 2)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "ftp://b.example/2", result.Rejected[0].URL)

	snap := qm.Snapshot()
	require.Len(t, snap.Jobs, 2)
	assert.Equal(t, "https://a.example/1", snap.Jobs[0].URL)
	assert.Equal(t, "https://c.example/3", snap.Jobs[1].URL)
	for i, job := range snap.Jobs {
		assert.Equal(t, result.IDs[i], job.ID)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Equal(t, domain.FormatMP4, job.Format)
		assert.Equal(t, domain.Quality1080, job.Quality)
		assert.Nil(t, job.Title)
	}
	assert.False(t, snap.Draining)
}

func TestQueueManager_EnqueueValidation(t *testing.T) {
	qm := newTestQueue(t, newFakeFetcher(), newMemHistoryRepo())

	tests := []struct {
		name    string
		urls    []string
		format  string
		quality string
	}{
		{"no urls", nil, "", ""},
		{"blank urls", []string{"  ", ""}, "", ""},
		{"bad format", []string{"https://a.example"}, "avi", ""},
		{"bad quality", []string{"https://a.example"}, "mp4", "999"},
		{"nothing acceptable", []string{"ftp://a.example", "not a url"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qm.Enqueue(tt.urls, tt.format, tt.quality)
			assert.True(t, domain.IsValidation(err), "got %v", err)
			assert.Empty(t, qm.Snapshot().Jobs)
		})
	}
}

func TestQueueManager_EnqueueAllowsDuplicatesAndNormalisesMP3(t *testing.T) {
	qm := newTestQueue(t, newFakeFetcher(), newMemHistoryRepo())

	result, err := qm.Enqueue([]string{" https://a.example ", "https://a.example"}, "MP3", "720p")
	require.NoError(t, err)
	require.Len(t, result.IDs, 2)
	assert.NotEqual(t, result.IDs[0], result.IDs[1])

	for _, job := range qm.Snapshot().Jobs {
		assert.Equal(t, "https://a.example", job.URL)
		assert.Equal(t, domain.FormatMP3, job.Format)
		assert.Empty(t, job.Quality)
	}
}

func TestQueueManager_RemovePendingAndRefuseActive(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	qm := newTestQueue(t, fetcher, newMemHistoryRepo())

	result, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)
	activeID, pendingID := result.IDs[0], result.IDs[1]

	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	before := qm.Snapshot()
	removed, err := qm.Remove(activeID)
	assert.False(t, removed)
	assert.True(t, domain.IsInvalidState(err))
	assert.Equal(t, len(before.Jobs), len(qm.Snapshot().Jobs))
	assert.Equal(t, domain.StatusActive, qm.Snapshot().Jobs[0].Status)

	removed, err = qm.Remove(pendingID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = qm.Remove("missing")
	require.NoError(t, err)
	assert.False(t, removed)

	snap := qm.Snapshot()
	require.Len(t, snap.Jobs, 1)
	assert.Equal(t, activeID, snap.Jobs[0].ID)

	release()
	qm.Wait()
	assert.Equal(t, []string{"https://a.example"}, fetcher.fetched())
}

func TestQueueManager_DrainRecordsEveryOutcome(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.fail["https://b.example"] = errors.New("ERROR: HTTP Error 404: Not Found")
	repo := newMemHistoryRepo()
	qm := newTestQueue(t, fetcher, repo)

	sub := qm.Subscribe()
	_, err := qm.Enqueue([]string{"https://a.example", "https://b.example", "https://c.example"}, "", "")
	require.NoError(t, err)

	require.True(t, qm.StartDraining())
	qm.Wait()

	events := bufferedEvents(sub)
	var completed []domain.Event
	allComplete := 0
	for _, ev := range events {
		switch ev.Kind {
		case domain.EventJobCompleted:
			completed = append(completed, ev)
		case domain.EventAllComplete:
			allComplete++
		case domain.EventQueueChanged:
			assert.LessOrEqual(t, activeCount(*ev.Snapshot), 1)
		}
	}
	assert.Equal(t, 1, allComplete)
	require.Len(t, completed, 3)
	assert.True(t, completed[0].Success)
	assert.False(t, completed[1].Success)
	assert.Equal(t, "video not found", completed[1].Message)
	assert.True(t, completed[2].Success)
	assert.Equal(t, "title https://a.example", completed[0].Title)
	assert.Equal(t, "2.0 kB", completed[0].FileSize)

	last := events[len(events)-1]
	assert.Equal(t, domain.EventAllComplete, last.Kind)

	assert.Len(t, repo.byStatus(domain.HistorySuccess), 2)
	failed := repo.byStatus(domain.HistoryFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://b.example", failed[0].URL)
	require.NotNil(t, failed[0].ErrorMsg)
	assert.Equal(t, "video not found", *failed[0].ErrorMsg)

	snap := qm.Snapshot()
	assert.Empty(t, snap.Jobs)
	assert.False(t, snap.Draining)
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, fetcher.fetched())
}

func TestQueueManager_StartDrainingTwiceDispatchesOnce(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	qm := newTestQueue(t, fetcher, newMemHistoryRepo())

	_, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)

	assert.True(t, qm.StartDraining())
	assert.False(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")
	assert.False(t, qm.StartDraining())
	assert.True(t, qm.IsDraining())

	release()
	qm.Wait()
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, fetcher.fetched())
}

func TestQueueManager_ClearKeepsActive(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	qm := newTestQueue(t, fetcher, newMemHistoryRepo())

	result, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	sub := qm.Subscribe()
	initial := nextEvent(t, sub, isKind(domain.EventQueueChanged))
	assert.Len(t, initial.Snapshot.Jobs, 2)

	assert.Equal(t, 1, qm.Clear())

	next := nextEvent(t, sub, isKind(domain.EventQueueChanged))
	require.Len(t, next.Snapshot.Jobs, 1)
	assert.Equal(t, result.IDs[0], next.Snapshot.Jobs[0].ID)
	assert.Equal(t, domain.StatusActive, next.Snapshot.Jobs[0].Status)

	release()
	qm.Wait()
	assert.Equal(t, []string{"https://a.example"}, fetcher.fetched())
}

func TestQueueManager_StopDrainingFinishesInFlightJob(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	repo := newMemHistoryRepo()
	qm := newTestQueue(t, fetcher, repo)

	sub := qm.Subscribe()
	_, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	assert.True(t, qm.StopDraining())
	assert.False(t, qm.StopDraining())

	release()
	qm.Wait()

	snap := qm.Snapshot()
	require.Len(t, snap.Jobs, 1)
	assert.Equal(t, "https://b.example", snap.Jobs[0].URL)
	assert.Equal(t, domain.StatusPending, snap.Jobs[0].Status)
	assert.False(t, snap.Draining)
	assert.Len(t, repo.byStatus(domain.HistorySuccess), 1)

	for _, ev := range bufferedEvents(sub) {
		assert.NotEqual(t, domain.EventAllComplete, ev.Kind)
	}
	assert.False(t, qm.StopDraining())
}

func TestQueueManager_StopDuringLastJobStillCompletesCycle(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	repo := newMemHistoryRepo()
	qm := newTestQueue(t, fetcher, repo)

	sub := qm.Subscribe()
	_, err := qm.Enqueue([]string{"https://a.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	require.True(t, qm.StopDraining())
	release()
	qm.Wait()

	assert.Empty(t, qm.Snapshot().Jobs)
	assert.False(t, qm.IsDraining())
	assert.Len(t, repo.byStatus(domain.HistorySuccess), 1)

	allComplete := 0
	for _, ev := range bufferedEvents(sub) {
		if ev.Kind == domain.EventAllComplete {
			allComplete++
		}
	}
	assert.Equal(t, 1, allComplete)
	assert.False(t, qm.StopDraining())
}

func TestQueueManager_StartWithdrawsPendingStop(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	qm := newTestQueue(t, fetcher, newMemHistoryRepo())

	_, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	require.True(t, qm.StopDraining())
	assert.False(t, qm.StartDraining())

	release()
	qm.Wait()
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, fetcher.fetched())
	assert.Empty(t, qm.Snapshot().Jobs)
}

func TestQueueManager_CancelActive(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	repo := newMemHistoryRepo()
	qm := newTestQueue(t, fetcher, repo)

	result, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	assert.ErrorIs(t, qm.CancelActive("missing"), domain.ErrJobNotFound)
	assert.True(t, domain.IsInvalidState(qm.CancelActive(result.IDs[1])))
	require.NoError(t, qm.CancelActive(result.IDs[0]))

	qm.Wait()

	failed := repo.byStatus(domain.HistoryFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "https://a.example", failed[0].URL)
	assert.Equal(t, "cancelled", *failed[0].ErrorMsg)
	assert.Len(t, repo.byStatus(domain.HistorySuccess), 1)
}

func TestQueueManager_StoreFailureDoesNotRollBackOutcome(t *testing.T) {
	fetcher := newFakeFetcher()
	repo := newMemHistoryRepo()
	repo.createErr = errors.New("disk full")
	qm := newTestQueue(t, fetcher, repo)

	sub := qm.Subscribe()
	result, err := qm.Enqueue([]string{"https://a.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	qm.Wait()

	var storeErrors, completed int
	for _, ev := range bufferedEvents(sub) {
		switch ev.Kind {
		case domain.EventError:
			assert.Equal(t, result.IDs[0], ev.JobID)
			storeErrors++
		case domain.EventJobCompleted:
			assert.True(t, ev.Success)
			completed++
		}
	}
	assert.Equal(t, 1, storeErrors)
	assert.Equal(t, 1, completed)
	assert.Empty(t, qm.Snapshot().Jobs)
}

func TestQueueManager_ProgressAndTitleReachSnapshot(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	qm := newTestQueue(t, fetcher, newMemHistoryRepo())

	sub := qm.Subscribe()
	result, err := qm.Enqueue([]string{"https://a.example"}, "mp4", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())

	started := nextEvent(t, sub, isKind(domain.EventJobStarted))
	assert.Equal(t, result.IDs[0], started.JobID)
	assert.Equal(t, "https://a.example", started.URL)

	progress := nextEvent(t, sub, isKind(domain.EventJobProgress))
	assert.Equal(t, 25.0, *progress.Percent)

	job := qm.Snapshot().Jobs[0]
	assert.Equal(t, "25.0%", job.Progress)
	require.NotNil(t, job.Title)
	assert.Equal(t, "title https://a.example", *job.Title)
	assert.NotNil(t, job.StartedAt)

	release()
	qm.Wait()
}

func TestQueueManager_LateSubscriberGetsSnapshotFirst(t *testing.T) {
	qm := newTestQueue(t, newFakeFetcher(), newMemHistoryRepo())
	_, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)

	sub := qm.Subscribe()
	defer qm.Unsubscribe(sub)

	first := <-sub.Events()
	assert.Equal(t, domain.EventQueueChanged, first.Kind)
	assert.Len(t, first.Snapshot.Jobs, 2)
	assert.Empty(t, bufferedEvents(sub))
}

func TestQueueManager_AtMostOneActiveUnderConcurrentMutation(t *testing.T) {
	fetcher := newFakeFetcher()
	qm := newTestQueue(t, fetcher, newMemHistoryRepo())
	sub := qm.Subscribe()

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://seed.example/%d", i)
	}
	_, err := qm.Enqueue(urls, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				result, err := qm.Enqueue([]string{fmt.Sprintf("https://w%d.example/%d", w, i)}, "", "")
				if err != nil {
					continue
				}
				if i%2 == 0 {
					_, _ = qm.Remove(result.IDs[0])
				}
			}
		}(w)
	}
	wg.Wait()
	qm.Wait()

	observed := 0
	for _, ev := range bufferedEvents(sub) {
		if ev.Kind == domain.EventQueueChanged {
			observed++
			assert.LessOrEqual(t, activeCount(*ev.Snapshot), 1)
		}
	}
	assert.Greater(t, observed, 0)
	assert.Equal(t, uint64(0), sub.Dropped())
	assert.Equal(t, 0, activeCount(qm.Snapshot()))
}

func TestQueueManager_ShutdownCancelsAndRefusesRestart(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.hold("https://a.example")
	defer release()
	repo := newMemHistoryRepo()
	qm := newTestQueue(t, fetcher, repo)

	_, err := qm.Enqueue([]string{"https://a.example", "https://b.example"}, "", "")
	require.NoError(t, err)
	require.True(t, qm.StartDraining())
	waitStarted(t, fetcher, "https://a.example")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, qm.Shutdown(ctx))

	failed := repo.byStatus(domain.HistoryFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "cancelled", *failed[0].ErrorMsg)
	assert.False(t, qm.StartDraining())
	assert.Equal(t, []string{"https://a.example"}, fetcher.fetched())
}

func TestNewHistoryRecord(t *testing.T) {
	job := domain.NewJob("https://www.tiktok.com/@a/video/1", domain.FormatMP3, "")

	ok := newHistoryRecord(job, domain.Outcome{Success: true, Title: "Song", FileSize: "3.1 MB", FileSizeBytes: 3100000, Duration: "3:10"})
	assert.Equal(t, domain.HistorySuccess, ok.Status)
	assert.Equal(t, "Song", ok.Title)
	assert.Equal(t, "TikTok", ok.Platform)
	assert.Equal(t, domain.FormatMP3, ok.Format)
	assert.Nil(t, ok.ErrorMsg)

	failed := newHistoryRecord(job, domain.Outcome{ErrorMsg: "video is private"})
	assert.Equal(t, domain.HistoryFailed, failed.Status)
	assert.Equal(t, job.URL, failed.Title)
	assert.Equal(t, "N/A", failed.FileSize)
	assert.Equal(t, "N/A", failed.Duration)
	require.NotNil(t, failed.ErrorMsg)
	assert.Equal(t, "video is private", *failed.ErrorMsg)
}
