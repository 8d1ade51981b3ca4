package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hannam-lab/markers-cli/internal/resilience"
)

const okPlace = `{"response":{"status":"OK","result":{"items":[{
	"title":"한남더힐",
	"address":{"road":"서울특별시 용산구 독서당로 111","parcel":"한남동 810"},
	"point":{"x":"127.0050","y":"37.5370"}
}]}}}`

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient("  ")
	require.ErrorIs(t, err, ErrMissingKey)
}

func TestLookupPlace_Match(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		jsonHandler(okPlace)(w, r)
	})

	res, err := c.LookupPlace(context.Background(), "용산구 한남동 한남더힐")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "서울특별시 용산구 독서당로 111", res.Address)
	assert.Equal(t, "한남더힐", res.Title)
	assert.InDelta(t, 37.5370, res.Lat, 1e-9)
	assert.InDelta(t, 127.0050, res.Lng, 1e-9)

	require.NotNil(t, got)
	assert.Equal(t, searchPath, got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "place", q.Get("type"))
	assert.Empty(t, q.Get("category"))
	assert.Equal(t, "용산구 한남동 한남더힐", q.Get("query"))
	assert.Equal(t, "test-key", q.Get("key"))
	assert.Equal(t, "2.0", q.Get("version"))
	assert.Equal(t, "search", q.Get("service"))
	assert.Equal(t, "search", q.Get("request"))
}

func TestLookupAddress_UsesRoadCategory(t *testing.T) {
	var query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		jsonHandler(`{"response":{"status":"OK","result":{"items":[{"address":"서울특별시 용산구 한남대로 91","point":{"x":127.00,"y":37.53}}]}}}`)(w, r)
	})

	res, err := c.LookupAddress(context.Background(), "서울특별시 용산구 한남대로 91")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 37.53, res.Lat, 1e-9)
	assert.InDelta(t, 127.00, res.Lng, 1e-9)
	assert.Contains(t, query, "type=address")
	assert.Contains(t, query, "category=road")
}

func TestLookup_NotFoundShapes(t *testing.T) {
	bodies := map[string]string{
		"not found status": `{"response":{"status":"NOT_FOUND"}}`,
		"empty items":      `{"response":{"status":"OK","result":{"items":[]}}}`,
		"no address":       `{"response":{"status":"OK","result":{"items":[{"title":"X","point":{"x":"127","y":"37"}}]}}}`,
		"no point":         `{"response":{"status":"OK","result":{"items":[{"address":"A"}]}}}`,
		"bad point":        `{"response":{"status":"OK","result":{"items":[{"address":"A","point":{"x":"east","y":"37"}}]}}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, jsonHandler(body))
			res, err := c.LookupPlace(context.Background(), "q")
			require.NoError(t, err)
			assert.False(t, res.Matched)
			assert.True(t, res.Cacheable())
		})
	}
}

func TestLookup_UnavailableShapes(t *testing.T) {
	bodies := map[string]string{
		"service error":  `{"response":{"status":"ERROR","error":{"code":"INVALID_KEY","text":"bad key"}}}`,
		"quota exceeded": `{"response":{"status":"ERROR","error":{"code":"OVER_REQUEST_LIMIT"}}}`,
		"unknown status": `{"response":{"status":"MAYBE"}}`,
		"invalid json":   `<html>oops</html>`,
		"wrong types":    `{"response":{"status":"OK","result":"items"}}`,
		"empty body":     ``,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, jsonHandler(body))
			res, err := c.LookupPlace(context.Background(), "q")
			require.NoError(t, err)
			assert.False(t, res.Matched)
			assert.False(t, res.Cacheable())
		})
	}
}

func TestResult_Cacheable(t *testing.T) {
	var nilResult *Result
	assert.False(t, nilResult.Cacheable())
	assert.True(t, NotFound().Cacheable())
	assert.True(t, (&Result{Matched: true}).Cacheable())
	assert.False(t, Unavailable().Cacheable())
}

func TestWithHTTPClient_CopiesClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c, err := NewClient("k", WithHTTPClient(hc), WithTimeout(time.Second))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, hc.Timeout, "caller's client untouched")
	assert.Equal(t, time.Second, c.(*vworld).httpClient.Timeout)
}

func TestWithHTTPClient_NilIgnored(t *testing.T) {
	c, err := NewClient("k", WithHTTPClient(nil))
	require.NoError(t, err)

	v := c.(*vworld)
	require.NotNil(t, v.httpClient)
	assert.Equal(t, 10*time.Second, v.httpClient.Timeout)
}

func TestLookup_EmptyQuerySkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		jsonHandler(okPlace)(w, r)
	})
	res, err := c.LookupPlace(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, int32(0), calls.Load())
}

func TestLookup_StatusErrors(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
			})
			_, err := c.LookupPlace(context.Background(), "q")
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Contains(t, err.Error(), "status")
		})
	}
}

func TestLookup_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient("k", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.LookupPlace(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestLookup_ContextCancelled(t *testing.T) {
	c := newTestClient(t, jsonHandler(okPlace))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.LookupPlace(ctx, "q")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(okPlace))
	defer srv.Close()

	c, err := NewClient("k", WithHTTPClient(newRewriteClient(srv.URL, DefaultBaseURL)))
	require.NoError(t, err)

	res, err := c.LookupPlace(context.Background(), "한남더힐")
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet([]byte("short")))
	long := strings.Repeat("a", 1000)
	s := snippet([]byte(long))
	assert.Len(t, s, snippetBytes+3)
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(KindPlace, "  한남더힐 ")
	assert.Equal(t, a, CacheKey(KindPlace, "한남더힐"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, CacheKey(KindAddress, "한남더힐"))
	assert.Equal(t, CacheKey(KindPlace, "Hannam Hill"), CacheKey(KindPlace, "hannam hill"))
}
