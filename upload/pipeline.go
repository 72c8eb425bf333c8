package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/myresource/models"
)

var (
	ErrNoFiles         = errors.New("upload: no files selected")
	ErrBusy            = errors.New("upload: an upload is already in progress")
	ErrInvalidCategory = errors.New("upload: invalid category")
)

var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "myresource_uploads_total",
	Help: "Finished upload attempts by result.",
}, []string{"result"})

// Appender is the part of the catalog store the pipeline writes to.
type Appender interface {
	Append(ctx context.Context, r models.Resource) error
}

type State string

const (
	StateIdle      State = "idle"
	StateSelected  State = "files-selected"
	StateUploading State = "uploading"
	StateComplete  State = "complete"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is what a front end renders while an upload runs.
type Event struct {
	Type     EventType        `json:"type"`
	Progress int              `json:"progress"`
	Resource *models.Resource `json:"resource,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Suggestion pre-fills the upload form after a selection.
type Suggestion struct {
	Name      string          `json:"name"`
	Category  models.Category `json:"category"`
	TotalSize int64           `json:"total_size"`
	Files     int             `json:"files"`
}

// Metadata is the user-edited form. Tags is the raw comma separated input;
// an empty Category takes the suggestion.
type Metadata struct {
	Name        string `json:"name" form:"name"`
	Category    string `json:"category" form:"category"`
	Tags        string `json:"tags" form:"tags"`
	Description string `json:"description" form:"description"`
}

// Suggest derives form defaults from the first file and the total size.
func Suggest(files []File) Suggestion {
	if len(files) == 0 {
		return Suggestion{}
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	first := files[0]
	return Suggestion{
		Name:      SuggestName(first.Name),
		Category:  SuggestCategory(first.Type, first.Name),
		TotalSize: total,
		Files:     len(files),
	}
}

// Pipeline holds the collaborators shared by upload sessions.
type Pipeline struct {
	catalog  Appender
	blobs    BlobStore
	thumbs   Thumbnailer
	progress Progress
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Pipeline)

func WithThumbnailer(t Thumbnailer) Option {
	return func(p *Pipeline) { p.thumbs = t }
}

func WithProgress(pr Progress) Option {
	return func(p *Pipeline) { p.progress = pr }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// NewPipeline wires a pipeline. blobs may be nil, in which case records carry no URL.
func NewPipeline(catalog Appender, blobs BlobStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:  catalog,
		blobs:    blobs,
		thumbs:   DefaultThumbnailer(),
		progress: DefaultProgress(),
		log:      zap.NewNop(),
		now:      time.Now,
		newID:    newID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// newID returns a time-ordered UUIDv7 so ids sort by creation time.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewSession starts an idle session.
func (p *Pipeline) NewSession() *Session {
	return &Session{p: p, state: StateIdle}
}

// Upload is Select followed by Start on a fresh session.
func (p *Pipeline) Upload(ctx context.Context, files []File, meta Metadata, report func(Event)) (models.Resource, error) {
	s := p.NewSession()
	if _, err := s.Select(files); err != nil {
		return models.Resource{}, err
	}
	return s.Start(ctx, meta, report)
}

// Session is one pass through idle -> files-selected -> uploading -> complete.
type Session struct {
	p          *Pipeline
	mu         sync.Mutex
	state      State
	files      []File
	suggestion Suggestion
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Select replaces the selection. An empty selection leaves the session idle.
func (s *Session) Select(files []File) (Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUploading {
		return Suggestion{}, ErrBusy
	}
	if len(files) == 0 {
		s.state, s.files, s.suggestion = StateIdle, nil, Suggestion{}
		return Suggestion{}, ErrNoFiles
	}
	sniffed := make([]File, len(files))
	for i, f := range files {
		sniffed[i] = Sniff(f)
	}
	s.files = sniffed
	s.suggestion = Suggest(sniffed)
	s.state = StateSelected
	return s.suggestion, nil
}

// Reset drops the selection.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUploading {
		return ErrBusy
	}
	s.state, s.files, s.suggestion = StateIdle, nil, Suggestion{}
	return nil
}

// Start builds the record, runs progress, thumbnail and blob write
// concurrently and appends the record once all of them finished. report is
// called from one goroutine at a time. When ctx is cancelled nothing is
// persisted and the session goes back to files-selected.
func (s *Session) Start(ctx context.Context, meta Metadata, report func(Event)) (models.Resource, error) {
	if report == nil {
		report = func(Event) {}
	}

	s.mu.Lock()
	switch s.state {
	case StateUploading:
		s.mu.Unlock()
		return models.Resource{}, ErrBusy
	case StateIdle, StateComplete:
		s.mu.Unlock()
		return models.Resource{}, ErrNoFiles
	}
	rec, err := s.p.draft(s.files, s.suggestion, meta)
	if err != nil {
		s.mu.Unlock()
		return models.Resource{}, err
	}
	files := s.files
	s.state = StateUploading
	s.mu.Unlock()

	rec, err = s.p.run(ctx, files, rec, report)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		s.state = StateSelected
		return models.Resource{}, err
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	s.state = StateComplete
	s.files = nil
	return rec, nil
}

func (p *Pipeline) draft(files []File, sug Suggestion, meta Metadata) (models.Resource, error) {
	first := files[0]

	category := sug.Category
	if c := strings.TrimSpace(meta.Category); c != "" {
		category = models.Category(c)
		if !category.Valid() {
			return models.Resource{}, fmt.Errorf("%w: %q", ErrInvalidCategory, c)
		}
	}
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = first.Name
	}

	return models.Resource{
		ID:          p.newID(),
		Name:        name,
		Category:    category,
		Tags:        ParseTags(meta.Tags),
		Description: strings.TrimSpace(meta.Description),
		Size:        sug.TotalSize,
		Date:        p.now().UTC().Truncate(time.Millisecond),
		Type:        TypeOf(first.Type, first.Name),
	}, nil
}

func (p *Pipeline) run(ctx context.Context, files []File, rec models.Resource, report func(Event)) (models.Resource, error) {
	first := files[0]
	var thumbnail, url string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.progress.Run(gctx, func(pct int) {
			report(Event{Type: EventProgress, Progress: pct})
		})
	})
	if strings.HasPrefix(first.Type, "image/") && first.Open != nil {
		g.Go(func() error {
			thumbnail = p.thumbnail(first)
			return nil
		})
	}
	if p.blobs != nil && first.Open != nil {
		g.Go(func() error {
			rc, err := first.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", first.Name, err)
			}
			defer rc.Close()
			url, err = p.blobs.Put(gctx, ObjectKey(rec.Date, rec.ID, first.Name), rc, first.Size, first.Type)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		p.log.Warn("upload aborted", zap.String("id", rec.ID), zap.String("name", rec.Name), zap.Error(err))
		report(Event{Type: EventError, Error: err.Error()})
		return models.Resource{}, err
	}

	rec.Thumbnail = thumbnail
	rec.URL = url
	if err := p.catalog.Append(ctx, rec); err != nil {
		report(Event{Type: EventError, Error: err.Error()})
		return models.Resource{}, fmt.Errorf("append record: %w", err)
	}

	p.log.Info("upload complete",
		zap.String("id", rec.ID),
		zap.String("name", rec.Name),
		zap.String("category", string(rec.Category)),
		zap.Int64("size", rec.Size),
		zap.Bool("thumbnail", rec.Thumbnail != ""),
	)
	report(Event{Type: EventComplete, Progress: 100, Resource: &rec})
	return rec, nil
}

// thumbnail never fails the upload; a broken image just has no preview.
func (p *Pipeline) thumbnail(f File) string {
	rc, err := f.Open()
	if err != nil {
		p.log.Warn("open image for thumbnail", zap.String("name", f.Name), zap.Error(err))
		return ""
	}
	defer rc.Close()
	thumb, err := p.thumbs.Generate(rc)
	if err != nil {
		p.log.Warn("thumbnail skipped", zap.String("name", f.Name), zap.Error(err))
		return ""
	}
	return thumb
}
