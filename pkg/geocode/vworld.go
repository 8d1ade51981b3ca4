package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hannam-lab/markers-cli/internal/resilience"
)

const (
	searchPath   = "/req/search"
	maxBodyBytes = 1 << 20
	snippetBytes = 256
)

type vworld struct {
	key        string
	baseURL    string
	httpClient *http.Client
}

// searchResponse is the subset of the VWorld search response we read.
type searchResponse struct {
	Response struct {
		Status string `json:"status"`
		Result struct {
			Items []searchItem `json:"items"`
		} `json:"result"`
		Error struct {
			Code string `json:"code"`
			Text string `json:"text"`
		} `json:"error"`
	} `json:"response"`
}

type searchItem struct {
	Title   string       `json:"title"`
	Address AddressField `json:"address"`
	Point   struct {
		X coordinate `json:"x"` // longitude
		Y coordinate `json:"y"` // latitude
	} `json:"point"`
}

func (v *vworld) LookupAddress(ctx context.Context, address string) (*Result, error) {
	return v.search(ctx, KindAddress, address)
}

func (v *vworld) LookupPlace(ctx context.Context, query string) (*Result, error) {
	return v.search(ctx, KindPlace, query)
}

func (v *vworld) search(ctx context.Context, kind Kind, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return NotFound(), nil
	}

	params := url.Values{
		"service": {"search"},
		"request": {"search"},
		"version": {"2.0"},
		"format":  {"json"},
		"size":    {"1"},
		"crs":     {"EPSG:4326"},
		"key":     {v.key},
		"query":   {query},
		"type":    {string(kind)},
	}
	if kind == KindAddress {
		params.Set("category", "road")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil && resilience.IsTransient(err) {
			return nil, resilience.Transient(eris.Wrapf(err, "geocode: %s request", kind), 0)
		}
		return nil, eris.Wrapf(err, "geocode: %s request", kind)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.Transient(eris.Wrapf(err, "geocode: %s read body", kind), 0)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: %s returned status %d", kind, resp.StatusCode)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return parseSearch(kind, query, body), nil
}

// parseSearch never fails. Definite misses are NotFound; service errors and
// bodies it cannot read are Unavailable.
func parseSearch(kind Kind, query string, body []byte) *Result {
	log := zap.L().With(zap.String("kind", string(kind)), zap.String("query", query))

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		log.Warn("geocode: malformed response", zap.Error(err), zap.String("body", snippet(body)))
		return Unavailable()
	}

	switch sr.Response.Status {
	case "OK":
	case "NOT_FOUND":
		log.Debug("geocode: no match")
		return NotFound()
	case "ERROR":
		log.Warn("geocode: service error",
			zap.String("code", sr.Response.Error.Code),
			zap.String("text", sr.Response.Error.Text),
		)
		return Unavailable()
	default:
		log.Warn("geocode: unexpected status", zap.String("status", sr.Response.Status), zap.String("body", snippet(body)))
		return Unavailable()
	}

	if len(sr.Response.Result.Items) == 0 {
		log.Debug("geocode: no items")
		return NotFound()
	}
	item := sr.Response.Result.Items[0]

	addr, ok := item.Address.Normalize()
	if !ok {
		log.Debug("geocode: first item has no address", zap.String("title", item.Title))
		return NotFound()
	}
	if !item.Point.X.valid || !item.Point.Y.valid {
		log.Warn("geocode: first item has no usable point", zap.String("body", snippet(body)))
		return NotFound()
	}

	return &Result{
		Matched: true,
		Address: addr,
		Title:   strings.TrimSpace(item.Title),
		Lat:     item.Point.Y.value,
		Lng:     item.Point.X.value,
	}
}

func snippet(body []byte) string {
	if len(body) <= snippetBytes {
		return string(body)
	}
	return string(body[:snippetBytes]) + "..."
}
