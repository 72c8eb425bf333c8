package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/models"
)

// memBlobs records what was written.
type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = b
	return "/blobs/" + key, nil
}

// blockingBlobs holds Put until ctx is cancelled.
type blockingBlobs struct {
	started chan struct{}
}

func (b *blockingBlobs) Put(ctx context.Context, _ string, _ io.Reader, _ int64, _ string) (string, error) {
	close(b.started)
	<-ctx.Done()
	return "", ctx.Err()
}

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func fastProgress() Progress {
	return Progress{Interval: time.Millisecond, MaxStep: 10, Rand: func() float64 { return 1 }}
}

func newTestPipeline(store Appender, blobs BlobStore) *Pipeline {
	return NewPipeline(store, blobs,
		WithProgress(fastProgress()),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return "rec-1" }),
	)
}

func newCatalog() *catalog.Store {
	return catalog.NewStore(catalog.NewMemoryKV(), "resources", catalog.WithSeed(false))
}

func TestUploadFiveMiBImage(t *testing.T) {
	ctx := context.Background()
	const size = 5 * 1024 * 1024
	content := encodePNG(t, 800, 600)
	content = append(content, make([]byte, size-len(content))...)

	store := newCatalog()
	blobs := &memBlobs{}
	var events []Event
	rec, err := newTestPipeline(store, blobs).Upload(ctx,
		[]File{BytesFile("holiday.png", "image/png", content)},
		Metadata{Tags: "trip, ,sea"},
		func(e Event) { events = append(events, e) },
	)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	list, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("records = %d, want 1", len(list))
	}
	got := list[0]
	if got.Size != size {
		t.Errorf("size = %d, want %d", got.Size, size)
	}
	if got.Category != models.CategoryImage {
		t.Errorf("category = %q", got.Category)
	}
	if got.Name != "holiday.png" || got.Type != "image/png" || got.Downloads != 0 {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "trip" || got.Tags[1] != "sea" {
		t.Errorf("tags = %q", got.Tags)
	}
	b := decodeThumb(t, got.Thumbnail).Bounds()
	if b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("thumbnail = %dx%d", b.Dx(), b.Dy())
	}
	if got.URL != "/blobs/2026/10/17/rec-1_holiday.png" {
		t.Errorf("url = %q", got.URL)
	}
	if len(blobs.data["2026/10/17/rec-1_holiday.png"]) != size {
		t.Errorf("blob not fully written")
	}
	if rec.ID != got.ID {
		t.Errorf("returned record %q differs from stored %q", rec.ID, got.ID)
	}

	last := events[len(events)-1]
	if last.Type != EventComplete || last.Resource == nil || last.Resource.ID != "rec-1" {
		t.Errorf("last event = %+v", last)
	}
}

func TestUploadSumsSizesAndUsesFirstFile(t *testing.T) {
	store := newCatalog()
	files := []File{
		BytesFile("setup.zip", "application/zip", make([]byte, 300)),
		BytesFile("readme.txt", "text/plain", make([]byte, 200)),
	}
	rec, err := newTestPipeline(store, nil).Upload(context.Background(), files, Metadata{Name: "  Tool  "}, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rec.Size != 500 || rec.Name != "Tool" || rec.Category != models.CategorySoftware || rec.Type != "application/zip" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Thumbnail != "" || rec.URL != "" {
		t.Errorf("no thumbnail or url expected: %+v", rec)
	}
}

func TestSessionStates(t *testing.T) {
	ctx := context.Background()
	s := newTestPipeline(newCatalog(), nil).NewSession()
	if s.State() != StateIdle {
		t.Fatalf("initial state = %q", s.State())
	}
	if _, err := s.Start(ctx, Metadata{}, nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("start while idle: %v", err)
	}
	if _, err := s.Select(nil); !errors.Is(err, ErrNoFiles) || s.State() != StateIdle {
		t.Errorf("empty select: err=%v state=%q", err, s.State())
	}

	sug, err := s.Select([]File{BytesFile("talk.mp3", "audio/mpeg", make([]byte, 42))})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sug.Name != "talk" || sug.Category != models.CategoryAudio || sug.TotalSize != 42 {
		t.Errorf("suggestion = %+v", sug)
	}
	if s.State() != StateSelected {
		t.Fatalf("state = %q", s.State())
	}

	if _, err := s.Start(ctx, Metadata{Category: "games"}, nil); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	if s.State() != StateSelected {
		t.Errorf("state after invalid category = %q", s.State())
	}

	rec, err := s.Start(ctx, Metadata{Category: "other"}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rec.Category != models.CategoryOther {
		t.Errorf("category override ignored: %q", rec.Category)
	}
	if s.State() != StateComplete {
		t.Errorf("state = %q", s.State())
	}
	if _, err := s.Start(ctx, Metadata{}, nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("second start: %v", err)
	}
	if err := s.Reset(); err != nil || s.State() != StateIdle {
		t.Errorf("reset: err=%v state=%q", err, s.State())
	}
}

func TestSessionBusyAndCancel(t *testing.T) {
	store := newCatalog()
	blobs := &blockingBlobs{started: make(chan struct{})}
	p := NewPipeline(store, blobs, WithProgress(Progress{Interval: time.Hour, MaxStep: 10}))
	s := p.NewSession()
	if _, err := s.Select([]File{BytesFile("a.bin", "application/octet-stream", []byte{1, 2, 3})}); err != nil {
		t.Fatalf("Select: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Start(ctx, Metadata{}, nil)
		done <- err
	}()

	<-blobs.started
	if s.State() != StateUploading {
		t.Fatalf("state = %q", s.State())
	}
	if _, err := s.Start(context.Background(), Metadata{}, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("re-entry: %v", err)
	}
	if _, err := s.Select([]File{BytesFile("b", "", nil)}); !errors.Is(err, ErrBusy) {
		t.Errorf("select while uploading: %v", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.State() != StateSelected {
		t.Errorf("state after cancel = %q", s.State())
	}
	list, _ := store.Load(context.Background())
	if len(list) != 0 {
		t.Errorf("cancelled upload persisted %d records", len(list))
	}
}

func TestUploadBrokenImageHasNoThumbnail(t *testing.T) {
	store := newCatalog()
	rec, err := newTestPipeline(store, &memBlobs{}).Upload(context.Background(),
		[]File{BytesFile("broken.jpg", "image/jpeg", bytes.Repeat([]byte{0xff}, 64))}, Metadata{}, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rec.Thumbnail != "" {
		t.Errorf("unexpected thumbnail")
	}
	if rec.Category != models.CategoryImage {
		t.Errorf("category = %q", rec.Category)
	}
}

func TestUploadHugeImageSkipsThumbnail(t *testing.T) {
	store := newCatalog()
	rec, err := newTestPipeline(store, &memBlobs{}).Upload(context.Background(),
		[]File{BytesFile("bomb.png", "image/png", pngHeader(60000, 60000))}, Metadata{}, nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rec.Thumbnail != "" {
		t.Errorf("unexpected thumbnail")
	}
	if rec.Category != models.CategoryImage {
		t.Errorf("category = %q", rec.Category)
	}
}
