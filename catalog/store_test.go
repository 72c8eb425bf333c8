package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cppla/myresource/models"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(kv KV, opts ...StoreOption) *Store {
	opts = append([]StoreOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewStore(kv, "resources", opts...)
}

// failingKV simulates an unreachable backend.
type failingKV struct {
	sets int
}

func (f *failingKV) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (f *failingKV) Set(context.Context, string, string) error {
	f.sets++
	return errors.New("connection refused")
}

func TestStoreSeedsAbsentCatalog(t *testing.T) {
	kv := NewMemoryKV()
	s := newTestStore(kv)

	list, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 seed records, got %d", len(list))
	}
	if list[0].ID != "1" || list[1].ID != "2" {
		t.Errorf("unexpected seed ids %q %q", list[0].ID, list[1].ID)
	}
	if list[1].Size != 450*1024*1024 {
		t.Errorf("video seed size = %d", list[1].Size)
	}
	if !list[1].Date.Equal(fixedNow.Add(-7 * 24 * time.Hour)) {
		t.Errorf("video seed date = %v", list[1].Date)
	}
	if _, err := kv.Get(context.Background(), "resources"); err != nil {
		t.Fatalf("seeds were not persisted: %v", err)
	}
	if s.Version() != 1 {
		t.Errorf("version = %d, want 1", s.Version())
	}
}

func TestStoreSeedsMalformedAndEmptyCatalog(t *testing.T) {
	cases := []struct {
		raw      string
		backedUp bool
	}{
		{"not json", true},
		{"[]", false},
		{"{\"id\":1}", true},
		{"[null, 7]", true},
		{"  ", false},
	}
	for _, tc := range cases {
		kv := NewMemoryKV()
		_ = kv.Set(context.Background(), "resources", tc.raw)
		s := newTestStore(kv)
		list, err := s.Load(context.Background())
		if err != nil {
			t.Fatalf("Load(%q): %v", tc.raw, err)
		}
		if len(list) != 2 {
			t.Errorf("Load(%q) returned %d records, want seeds", tc.raw, len(list))
		}
		backup, err := kv.Get(context.Background(), s.backupKey())
		if tc.backedUp && backup != tc.raw {
			t.Errorf("Load(%q): backup = %q, %v", tc.raw, backup, err)
		}
		if !tc.backedUp && !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Load(%q): unexpected backup %q", tc.raw, backup)
		}
	}
}

// A catalog written by the browser app: its seed size 2.3*1024^3 is fractional.
const browserCatalog = `[` +
	`{"id":"1","name":"Photoshop 2023 安装包.zip","category":"software","tags":["设计"],"description":"","size":2469606195.2,"date":"2025-10-09T08:00:00.000Z","type":"ZIP压缩包","downloads":124},` +
	`{"id":"1760000000000","name":"my-holiday.jpg","category":"image","tags":[],"size":2048,"date":"2025-10-10T10:00:00.000Z","type":"image/jpeg","downloads":0},` +
	`{"id":"broken","name":"x","date":"yesterday"}` +
	`]`

func TestStoreKeepsReadableRecords(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Set(ctx, "resources", browserCatalog)
	s := newTestStore(kv)

	list, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(ids(list), []string{"1", "1760000000000"}) {
		t.Fatalf("ids = %v", ids(list))
	}
	if list[0].Size != 2469606195 || list[0].Downloads != 124 {
		t.Errorf("size=%d downloads=%d", list[0].Size, list[0].Downloads)
	}
	if raw, _ := kv.Get(ctx, "resources"); raw != browserCatalog {
		t.Fatalf("a read must not rewrite the stored catalog")
	}

	if _, err := s.RecordDownload(ctx, "1760000000000"); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	backup, err := kv.Get(ctx, s.backupKey())
	if err != nil || backup != browserCatalog {
		t.Fatalf("original value not backed up: %q, %v", backup, err)
	}
	raw, _ := kv.Get(ctx, "resources")
	saved, err := Decode(raw)
	if err != nil {
		t.Fatalf("saved catalog unreadable: %v", err)
	}
	if len(saved) != 2 || saved[1].Downloads != 1 {
		t.Errorf("saved = %+v", saved)
	}
}

func TestStoreRefusesSaveWithoutBackup(t *testing.T) {
	ctx := context.Background()
	kv := &backupFailingKV{MemoryKV: NewMemoryKV()}
	_ = kv.MemoryKV.Set(ctx, "resources", "not json")

	if _, err := newTestStore(kv).Load(ctx); err == nil {
		t.Fatal("expected the failed backup to stop seeding")
	}
	if raw, _ := kv.Get(ctx, "resources"); raw != "not json" {
		t.Errorf("stored value overwritten: %q", raw)
	}
}

// backupFailingKV rejects writes to any key but the catalog itself.
type backupFailingKV struct {
	*MemoryKV
}

func (b *backupFailingKV) Set(ctx context.Context, key, value string) error {
	if key != "resources" {
		return errors.New("read-only")
	}
	return b.MemoryKV.Set(ctx, key, value)
}

func TestDecodeNumbers(t *testing.T) {
	cases := []struct {
		raw  string
		size int64
		ok   bool
	}{
		{`[{"id":"a","size":10}]`, 10, true},
		{`[{"id":"a","size":10.9}]`, 10, true},
		{`[{"id":"a","size":1e3}]`, 1000, true},
		{`[{"id":"a"}]`, 0, true},
		{`[{"id":"a","size":1e30}]`, 0, false},
	}
	for _, tc := range cases {
		list, err := Decode(tc.raw)
		if (err == nil) != tc.ok {
			t.Errorf("Decode(%s) err = %v", tc.raw, err)
			continue
		}
		if tc.ok && (len(list) != 1 || list[0].Size != tc.size) {
			t.Errorf("Decode(%s) = %+v, want size %d", tc.raw, list, tc.size)
		}
		if !tc.ok && len(list) != 0 {
			t.Errorf("Decode(%s) kept a bad record", tc.raw)
		}
	}
	if _, err := Decode("{}"); !errors.Is(err, ErrMalformedCatalog) {
		t.Errorf("object err = %v", err)
	}
}

func TestStoreSeedDisabled(t *testing.T) {
	kv := NewMemoryKV()
	list, err := newTestStore(kv, WithSeed(false)).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty catalog, got %d", len(list))
	}
	if _, err := kv.Get(context.Background(), "resources"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("nothing should be written, got err=%v", err)
	}
}

func TestStoreBackendErrorIsNotEmpty(t *testing.T) {
	kv := &failingKV{}
	if _, err := newTestStore(kv).Load(context.Background()); err == nil {
		t.Fatal("expected backend error")
	}
	if kv.sets != 0 {
		t.Errorf("seeds written over unreadable backend: %d sets", kv.sets)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []models.Resource{
		{
			ID:          "0192d3a4-0000-7000-8000-000000000001",
			Name:        "holiday",
			Category:    models.CategoryImage,
			Tags:        []string{"trip", "2026"},
			Description: "beach",
			Size:        5 * 1024 * 1024,
			Date:        time.Date(2026, 7, 3, 8, 30, 15, 123000000, time.UTC),
			Type:        "image/png",
			Downloads:   3,
			URL:         "/static/uploads/2026/07/03/holiday.png",
			Thumbnail:   "data:image/jpeg;base64,AAAA",
		},
		{ID: "2", Name: "notes", Category: models.CategoryOther, Tags: []string{}, Date: fixedNow},
	}
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Date.Equal(in[i].Date) {
			t.Errorf("record %d date = %v, want %v", i, out[i].Date, in[i].Date)
		}
		a, b := in[i], out[i]
		a.Date, b.Date = time.Time{}, time.Time{}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("record %d mismatch:\n got %+v\nwant %+v", i, b, a)
		}
	}
}

func TestDecodeNormalizesUnknownCategory(t *testing.T) {
	out, err := Decode(`[{"id":"x","name":"n","category":"games","size":-5}]`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out[0].Category != models.CategoryOther || out[0].Size != 0 {
		t.Errorf("got category=%q size=%d", out[0].Category, out[0].Size)
	}
}

func TestStoreAppend(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryKV())

	r := models.Resource{ID: "u1", Name: "a", Category: models.CategoryAudio, Size: 10, Date: fixedNow}
	if err := s.Append(ctx, r); err != nil {
		t.Fatalf("Append: %v", err)
	}
	list, _ := s.Load(ctx)
	if len(list) != 3 || list[2].ID != "u1" {
		t.Fatalf("record not appended at the end: %+v", list)
	}
	if err := s.Append(ctx, r); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	bad := r
	bad.ID, bad.Category = "u2", "games"
	if err := s.Append(ctx, bad); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	bad.Category, bad.Size = models.CategoryAudio, -1
	if err := s.Append(ctx, bad); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestRecordDownloadTwicePersists(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := newTestStore(kv)

	for i := 0; i < 2; i++ {
		if _, err := s.RecordDownload(ctx, "1"); err != nil {
			t.Fatalf("RecordDownload: %v", err)
		}
	}

	// a fresh store reads what the first one saved
	got, err := newTestStore(kv).Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Downloads != 126 {
		t.Errorf("downloads = %d, want 126", got.Downloads)
	}

	if _, err := s.RecordDownload(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	kv := NewRedisKV(rdb)
	ctx := context.Background()

	if _, err := kv.Get(ctx, "resources"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	s := newTestStore(kv)
	if _, err := s.RecordDownload(ctx, "2"); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	raw, err := mr.Get("resources")
	if err != nil {
		t.Fatalf("key missing in redis: %v", err)
	}
	list, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if list[1].Downloads != 90 {
		t.Errorf("downloads = %d, want 90", list[1].Downloads)
	}
}

func TestRedisKVBackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err = newTestStore(NewRedisKV(rdb)).Load(context.Background())
	if err == nil || errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected a backend error, got %v", err)
	}
}
