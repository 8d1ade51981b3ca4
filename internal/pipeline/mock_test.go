package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hannam-lab/markers-cli/pkg/geocode"
)

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) LookupAddress(ctx context.Context, address string) (*geocode.Result, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

func (m *mockGeocoder) LookupPlace(ctx context.Context, query string) (*geocode.Result, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// memCache is an in-memory geocode.Cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*geocode.Result
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*geocode.Result)}
}

func (c *memCache) Get(_ context.Context, kind geocode.Kind, query string) (*geocode.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[geocode.CacheKey(kind, query)]
	return r, ok, nil
}

func (c *memCache) Put(_ context.Context, kind geocode.Kind, query string, res *geocode.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[geocode.CacheKey(kind, query)] = res
	return nil
}

// stubGeocoder answers place queries from a fixed table.
type stubGeocoder struct {
	places map[string]*geocode.Result
}

func (s stubGeocoder) LookupAddress(context.Context, string) (*geocode.Result, error) {
	return geocode.NotFound(), nil
}

func (s stubGeocoder) LookupPlace(_ context.Context, query string) (*geocode.Result, error) {
	if r, ok := s.places[query]; ok {
		return r, nil
	}
	return geocode.NotFound(), nil
}
