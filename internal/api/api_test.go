package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qk-fence/internal/fence"
	"qk-fence/internal/geoip"
	"qk-fence/internal/store"
	"qk-fence/internal/tilecode"
)

type fakeStore struct {
	squares []store.Square
	fences  []store.Fence
	err     error
}

func (f *fakeStore) LookupCells(_ context.Context, cells []tilecode.Cell) ([]store.Square, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Square
	for _, s := range f.squares {
		for _, c := range cells {
			if c.Level == s.Level && c.Quadkey == s.Quadkey {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) LevelRange(context.Context) (int, int, error) {
	if len(f.squares) == 0 {
		return 0, 0, store.ErrNoSquares
	}
	return 4, 12, nil
}

func (f *fakeStore) ListFences(context.Context) ([]store.Fence, error) { return f.fences, f.err }

type fakeLocator map[string][2]float64

func (f fakeLocator) Locate(ip string) (float64, float64, error) {
	if ip == "bad" {
		return 0, 0, geoip.ErrBadIP
	}
	p, ok := f[ip]
	if !ok {
		return 0, 0, geoip.ErrNoLocation
	}
	return p[0], p[1], nil
}

func newTestRoutes(t *testing.T, st *fakeStore, loc Locator) http.Handler {
	t.Helper()
	return BuildRoutes(Deps{
		Engine:     fence.NewEngine(st, fence.Options{}),
		Fences:     st,
		GeoIP:      loc,
		AdminToken: "s3cret",
	})
}

func lisbonStore(t *testing.T) *fakeStore {
	qk, err := tilecode.GeoToQuadkey(38.72, -9.14, 12)
	require.NoError(t, err)
	return &fakeStore{
		squares: []store.Square{{SquareID: 3, FenceID: 1, FenceName: "Portugal", Level: 9, Quadkey: qk >> 6}},
		fences:  []store.Fence{{ID: 1, Name: "Portugal", Squares: 1}},
	}
}

func get(t *testing.T, h http.Handler, url string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestFenceQuery(t *testing.T) {
	h := newTestRoutes(t, lisbonStore(t), nil)

	rec, body := get(t, h, "/fence?lat=38.72&lon=-9.14")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("content-type"))
	matches := body["matches"].([]any)
	require.Len(t, matches, 1)
	m := matches[0].(map[string]any)
	assert.Equal(t, "Portugal", m["fence_name"])
	assert.Equal(t, float64(9), m["level"])

	rec, body = get(t, h, "/fence?lat=48.85&lon=2.35")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["matches"])
}

func TestFenceQueryLevelsAndErrors(t *testing.T) {
	h := newTestRoutes(t, lisbonStore(t), nil)

	rec, body := get(t, h, "/fence?lat=38.72&lon=-9.14&max=12&min=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["matches"])

	rec, _ = get(t, h, "/fence?lat=38.72&lon=-9.14&max=40")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, h, "/fence?lat=abc&lon=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, h, "/fence?lat=91&lon=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, newTestRoutes(t, &fakeStore{}, nil), "/fence?lat=1&lon=1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	st := lisbonStore(t)
	st.err = errors.New("db down")
	rec, body = get(t, newTestRoutes(t, st, nil), "/fence?lat=1&lon=1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestFenceByIP(t *testing.T) {
	loc := fakeLocator{"192.0.2.10": {38.72, -9.14}}
	h := newTestRoutes(t, lisbonStore(t), loc)

	rec, body := get(t, h, "/fence/ip?ip=192.0.2.10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.0.2.10", body["ip"])
	assert.Len(t, body["matches"], 1)

	req := httptest.NewRequest(http.MethodGet, "/fence/ip", nil)
	req.Header.Set("x-forwarded-for", "192.0.2.10, 10.0.0.1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rec, _ = get(t, h, "/fence/ip?ip=198.51.100.1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = get(t, h, "/fence/ip?ip=bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, newTestRoutes(t, lisbonStore(t), nil), "/fence/ip?ip=192.0.2.10")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFencesAndQuadkey(t *testing.T) {
	h := newTestRoutes(t, lisbonStore(t), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fences", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Portugal","squares":1}]`, rec.Body.String())

	rec, body := get(t, h, "/quadkey?lat=35.685323&lon=139.752768&level=17")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "13300211231022032", body["key"])
	assert.Equal(t, float64(17), body["level"])

	rec, _ = get(t, h, "/quadkey?lat=0&lon=0&level=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReloadRequiresToken(t *testing.T) {
	h := newTestRoutes(t, lisbonStore(t), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	req.Header.Set("x-admin-token", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"min_level":4,"max_level":12}`, rec.Body.String())
}

func TestReloadReportsRedisPurgeFailure(t *testing.T) {
	rc := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rc.Close() }()

	n, err := purgeQueryCache(context.Background(), rc)
	require.Error(t, err)
	assert.Zero(t, n)

	st := lisbonStore(t)
	h := BuildRoutes(Deps{
		Engine:     fence.NewEngine(st, fence.Options{}),
		Fences:     st,
		Redis:      rc,
		AdminToken: "s3cret",
	})
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	req.Header.Set("x-admin-token", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"min_level":4,"max_level":12}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/fence/ip", nil)
	r.RemoteAddr = "203.0.113.9:4567"
	assert.Equal(t, "203.0.113.9", clientIP(r))

	r.Header.Set("forwarded", `for="198.51.100.17";proto=https`)
	assert.Equal(t, "198.51.100.17", clientIP(r))

	r.Header.Set("x-real-ip", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(r))
}
