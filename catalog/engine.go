package catalog

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/cppla/myresource/models"
)

var (
	queryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myresource_query_cache_hits_total",
		Help: "Catalog queries answered from the result cache.",
	})
	queryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "myresource_query_cache_misses_total",
		Help: "Catalog queries computed from the store.",
	})
)

// Engine answers filter queries against a Store, caching results per catalog version.
type Engine struct {
	store *Store
	lang  language.Tag
	cache *expirable.LRU[string, []models.Resource]
	// concurrent misses for the same key share one load
	group singleflight.Group
}

// NewEngine builds a query engine. locale selects the collation for name sort;
// an unparsable locale falls back to Chinese, matching the seed data.
func NewEngine(store *Store, locale string, cacheSize int, ttl time.Duration) *Engine {
	lang, err := language.Parse(locale)
	if err != nil {
		lang = language.Chinese
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	return &Engine{
		store: store,
		lang:  lang,
		cache: expirable.NewLRU[string, []models.Resource](cacheSize, nil, ttl),
	}
}

// Store exposes the underlying store for mutations.
func (e *Engine) Store() *Store {
	return e.store
}

// Query loads the catalog and applies f.
func (e *Engine) Query(ctx context.Context, f Filter) ([]models.Resource, error) {
	before := e.store.Version()
	key := strconv.FormatUint(before, 10) + "\x00" + f.cacheKey()
	if hit, ok := e.cache.Get(key); ok {
		queryCacheHits.Inc()
		return slices.Clone(hit), nil
	}
	queryCacheMisses.Inc()

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		list, err := e.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		out := Apply(list, f, e.lang)
		// Only cache when no save happened while loading (seeding bumps the version too).
		if e.store.Version() == before {
			e.cache.Add(key, out)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.Resource)), nil
}
