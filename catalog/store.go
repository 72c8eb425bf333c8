package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/myresource/models"
)

var (
	ErrNotFound        = errors.New("catalog: resource not found")
	ErrDuplicateID     = errors.New("catalog: duplicate resource id")
	ErrInvalidCategory = errors.New("catalog: invalid category")
	ErrInvalidSize     = errors.New("catalog: size must not be negative")
	// ErrMalformedCatalog means the stored value is not a JSON array at all.
	ErrMalformedCatalog = errors.New("catalog: stored value is not a record list")
)

// Store owns the serialized catalog under one key. Every mutation is a
// load-modify-save of the whole list, serialized by mu.
type Store struct {
	kv      KV
	key     string
	seed    bool
	now     func() time.Time
	log     *zap.Logger
	mu      sync.Mutex
	version atomic.Uint64
	// unreadable holds the last loaded raw value when part of it failed to
	// decode; the next save copies it to a backup key first.
	unreadable string
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithSeed toggles writing the demo records when the catalog is empty.
func WithSeed(enabled bool) StoreOption {
	return func(s *Store) { s.seed = enabled }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates a store persisting under key. Seeding is on by default.
func NewStore(kv KV, key string, opts ...StoreOption) *Store {
	s := &Store{
		kv:   kv,
		key:  key,
		seed: true,
		now:  time.Now,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Version increases on every successful save. Query results are cached per version.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Load returns the current catalog, seeding it first when it is absent,
// malformed or empty.
func (s *Store) Load(ctx context.Context) ([]models.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (models.Resource, error) {
	list, err := s.Load(ctx)
	if err != nil {
		return models.Resource{}, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Resource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Update applies fn to the loaded catalog and persists the result.
// Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, fn func([]models.Resource) ([]models.Resource, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	next, err := fn(list)
	if err != nil {
		return err
	}
	return s.saveLocked(ctx, next)
}

// Append adds one record at the end of the catalog.
func (s *Store) Append(ctx context.Context, r models.Resource) error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, r.Category)
	}
	if r.Size < 0 {
		return ErrInvalidSize
	}
	r = normalize(r)
	return s.Update(ctx, func(list []models.Resource) ([]models.Resource, error) {
		for _, existing := range list {
			if existing.ID == r.ID {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
			}
		}
		return append(list, r), nil
	})
}

// RecordDownload increments the download counter of id and returns the updated record.
func (s *Store) RecordDownload(ctx context.Context, id string) (models.Resource, error) {
	var updated models.Resource
	err := s.Update(ctx, func(list []models.Resource) ([]models.Resource, error) {
		for i := range list {
			if list[i].ID == id {
				list[i].Downloads++
				updated = list[i]
				return list, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	})
	return updated, err
}

func (s *Store) loadLocked(ctx context.Context) ([]models.Resource, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		// A backend outage must never look like an empty catalog, or seeds would overwrite real data.
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	list, decodeErr := Decode(raw)
	s.unreadable = ""
	if decodeErr != nil {
		s.unreadable = raw
		s.log.Warn("catalog data partly unreadable, skipping bad records",
			zap.String("key", s.key), zap.Int("kept", len(list)), zap.Error(decodeErr))
	}
	if len(list) > 0 || !s.seed {
		return list, nil
	}

	seeds := SeedResources(s.now())
	if err := s.saveLocked(ctx, seeds); err != nil {
		return nil, err
	}
	s.log.Info("catalog seeded with demo records", zap.Int("count", len(seeds)))
	return seeds, nil
}

func (s *Store) saveLocked(ctx context.Context, list []models.Resource) error {
	raw, err := Encode(list)
	if err != nil {
		return err
	}
	if s.unreadable != "" {
		backup := s.backupKey()
		if err := s.kv.Set(ctx, backup, s.unreadable); err != nil {
			return fmt.Errorf("back up unreadable catalog: %w", err)
		}
		s.log.Warn("unreadable catalog backed up before overwrite", zap.String("backup_key", backup))
		s.unreadable = ""
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	s.version.Add(1)
	return nil
}

// Encode serializes the catalog as a JSON array.
func Encode(list []models.Resource) (string, error) {
	if list == nil {
		list = []models.Resource{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode catalog: %w", err)
	}
	return string(b), nil
}

// backupKey names where an unreadable catalog value is kept.
func (s *Store) backupKey() string {
	return s.key + ":unreadable:" + strconv.FormatInt(s.now().UnixMilli(), 10)
}

// storedRecord reads the numeric fields leniently. Browser clients stored
// sizes such as 2.3*1024^3, which are not whole numbers.
type storedRecord struct {
	models.Resource
	Size      json.Number `json:"size"`
	Downloads json.Number `json:"downloads"`
}

// Decode parses a serialized catalog. Blank input is an empty catalog.
// Records that cannot be read are skipped; the returned error then lists
// them alongside the records that could be read. A value that is not an
// array at all yields ErrMalformedCatalog.
func Decode(raw string) ([]models.Resource, error) {
	if strings.TrimSpace(raw) == "" {
		return []models.Resource{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []models.Resource{}, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	list := make([]models.Resource, 0, len(items))
	var errs []error
	for i, item := range items {
		r, err := decodeRecord(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		list = append(list, normalize(r))
	}
	return list, errors.Join(errs...)
}

func decodeRecord(item json.RawMessage) (models.Resource, error) {
	var rec storedRecord
	if err := json.Unmarshal(item, &rec); err != nil {
		return models.Resource{}, err
	}
	if rec.ID == "" {
		return models.Resource{}, errors.New("missing id")
	}
	size, err := wholeNumber(rec.Size)
	if err != nil {
		return models.Resource{}, fmt.Errorf("size: %w", err)
	}
	downloads, err := wholeNumber(rec.Downloads)
	if err != nil {
		return models.Resource{}, fmt.Errorf("downloads: %w", err)
	}
	r := rec.Resource
	r.Size, r.Downloads = size, downloads
	return r, nil
}

// wholeNumber truncates fractional values; absent is 0.
func wholeNumber(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.Abs(f) >= 1<<63 {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return int64(math.Trunc(f)), nil
}

// normalize enforces record invariants on data written by older or foreign clients.
func normalize(r models.Resource) models.Resource {
	if !r.Category.Valid() {
		r.Category = models.CategoryOther
	}
	if r.Size < 0 {
		r.Size = 0
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	r.Date = r.Date.UTC().Truncate(time.Millisecond)
	return r
}
