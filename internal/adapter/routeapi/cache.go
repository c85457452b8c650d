package routeapi

import (
	"container/list"
	"context"
	"sync"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
)

// CachedAnalyzer wraps an Analyzer with an in-memory LRU cache keyed by query.
type CachedAnalyzer struct {
	inner   Analyzer
	metrics *observability.Metrics

	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cached struct {
	key      string
	analysis domain.RouteAnalysis
}

// NewCachedAnalyzer creates a cache decorator around an analyzer.
func NewCachedAnalyzer(inner Analyzer, maxEntries int, metrics *observability.Metrics) *CachedAnalyzer {
	return &CachedAnalyzer{
		inner:      inner,
		metrics:    metrics,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, q Query) (domain.RouteAnalysis, error) {
	key := q.cacheKey()
	if analysis, ok := c.get(key); ok {
		c.metrics.AnalysisCache.WithLabelValues("hit").Inc()
		return analysis, nil
	}
	c.metrics.AnalysisCache.WithLabelValues("miss").Inc()

	analysis, err := c.inner.Analyze(ctx, q)
	if err != nil {
		return analysis, err
	}
	// Empty analyses are not cached so a later request can find routes.
	if len(analysis.Routes) > 0 {
		c.put(key, analysis)
	}
	return analysis, nil
}

// Len returns the number of cached analyses.
func (c *CachedAnalyzer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedAnalyzer) get(key string) (domain.RouteAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.RouteAnalysis{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).analysis, true
}

func (c *CachedAnalyzer) put(key string, analysis domain.RouteAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cached).analysis = analysis
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cached{key: key, analysis: analysis})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cached).key)
	}
}
