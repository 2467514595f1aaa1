// 包 api：集中注册 HTTP API 路由，主入口挂载到 API_BASE 前缀下
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"qk-fence/internal/fence"
	"qk-fence/internal/geoip"
	"qk-fence/internal/logger"
	"qk-fence/internal/metrics"
	"qk-fence/internal/store"
	"qk-fence/internal/tilecode"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
)

// FenceLister：围栏列表
type FenceLister interface {
	ListFences(ctx context.Context) ([]store.Fence, error)
}

// Locator：IP 定位
type Locator interface {
	Locate(ip string) (float64, float64, error)
}

// Deps：路由依赖；Redis 与 GeoIP 可为空
type Deps struct {
	Engine     *fence.Engine
	Fences     FenceLister
	Redis      *redis.Client
	GeoIP      Locator
	CacheTTL   time.Duration
	AdminToken string
}

type queryResult struct {
	Lat     float64       `json:"lat"`
	Lon     float64       `json:"lon"`
	IP      string        `json:"ip,omitempty"`
	Matches []fence.Match `json:"matches"`
}

type quadkeyResult struct {
	X       uint32 `json:"x"`
	Y       uint32 `json:"y"`
	Level   int    `json:"level"`
	Quadkey uint64 `json:"quadkey"`
	Key     string `json:"key"`
}

var errBadParam = errors.New("bad parameter")

// BuildRoutes：构建 API 路由
func BuildRoutes(d Deps) http.Handler {
	if d.CacheTTL <= 0 {
		d.CacheTTL = time.Hour
	}
	h := &handlers{Deps: d}
	r := httprouter.New()
	r.GET("/fence", h.fence)
	r.GET("/fence/ip", h.fenceByIP)
	r.GET("/fences", h.fences)
	r.GET("/quadkey", h.quadkey)
	r.POST("/reload", h.reload)
	return r
}

type handlers struct {
	Deps
}

func (h *handlers) fence(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, "fence", err)
		return
	}
	res, err := h.query(r, lat, lon)
	if err != nil {
		writeError(w, "fence", err)
		return
	}
	writeJSON(w, "fence", http.StatusOK, res)
}

func (h *handlers) fenceByIP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.GeoIP == nil {
		writeJSON(w, "fence_ip", http.StatusNotFound, map[string]string{"error": "geoip disabled"})
		return
	}
	ip := clientIP(r)
	lat, lon, err := h.GeoIP.Locate(ip)
	if errors.Is(err, geoip.ErrNoLocation) {
		writeJSON(w, "fence_ip", http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		if errors.Is(err, geoip.ErrBadIP) {
			err = fmt.Errorf("%w: %w", errBadParam, err)
		}
		writeError(w, "fence_ip", err)
		return
	}
	res, err := h.query(r, lat, lon)
	if err != nil {
		writeError(w, "fence_ip", err)
		return
	}
	res.IP = ip
	writeJSON(w, "fence_ip", http.StatusOK, res)
}

// 文档注释：查询并使用 Redis 缓存
// 背景：同一坐标与级别的结果在导入周期内不变，命中直接返回；Redis 异常不阻断查询。
func (h *handlers) query(r *http.Request, lat, lon float64) (*queryResult, error) {
	ctx := r.Context()
	q := r.URL.Query()
	maxLevel, minLevel := 0, 0
	if q.Get("max") != "" || q.Get("min") != "" {
		lo, hi, err := h.Engine.Levels(ctx)
		if err != nil {
			return nil, err
		}
		if maxLevel, err = intParam(q.Get("max"), hi); err != nil {
			return nil, err
		}
		if minLevel, err = intParam(q.Get("min"), lo); err != nil {
			return nil, err
		}
	}
	key := fmt.Sprintf("fence:%.6f:%.6f:%d:%d", lat, lon, maxLevel, minLevel)
	res := &queryResult{Lat: lat, Lon: lon}
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			if json.Unmarshal([]byte(s), res) == nil {
				metrics.RedisHitsTotal.Inc()
				return res, nil
			}
		}
		metrics.RedisMissesTotal.Inc()
	}
	var err error
	if maxLevel == 0 {
		res.Matches, err = h.Engine.Query(ctx, lat, lon)
	} else {
		res.Matches, err = h.Engine.QueryLevels(ctx, lat, lon, maxLevel, minLevel)
	}
	if err != nil {
		return nil, err
	}
	if h.Redis != nil {
		b, _ := json.Marshal(res)
		if err := h.Redis.Set(ctx, key, string(b), h.CacheTTL).Err(); err != nil {
			logger.L().Debug("redis_set_error", "err", err)
		}
	}
	return res, nil
}

func (h *handlers) fences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.Fences.ListFences(r.Context())
	if err != nil {
		writeError(w, "fences", err)
		return
	}
	type item struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Squares int64  `json:"squares"`
	}
	out := make([]item, 0, len(list))
	for _, f := range list {
		out = append(out, item{ID: f.ID, Name: f.Name, Squares: f.Squares})
	}
	writeJSON(w, "fences", http.StatusOK, out)
}

func (h *handlers) quadkey(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		writeError(w, "quadkey", err)
		return
	}
	level, err := intParam(r.URL.Query().Get("level"), 20)
	if err != nil {
		writeError(w, "quadkey", err)
		return
	}
	x, y, err := tilecode.GeoToTile(lat, lon, level)
	if err != nil {
		writeError(w, "quadkey", err)
		return
	}
	qk, _ := tilecode.TileToQuadkey(x, y, level)
	key, _ := tilecode.QuadkeyToString(qk, level)
	writeJSON(w, "quadkey", http.StatusOK, quadkeyResult{X: x, Y: y, Level: level, Quadkey: qk, Key: key})
}

// reload：重新导入围栏后刷新级别范围与缓存，需 x-admin-token
func (h *handlers) reload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	t := r.Header.Get("x-admin-token")
	if h.AdminToken == "" || t != h.AdminToken {
		writeJSON(w, "reload", http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	lo, hi, err := h.Engine.Reload(r.Context())
	if err != nil {
		writeError(w, "reload", err)
		return
	}
	if h.Redis != nil {
		n, err := purgeQueryCache(r.Context(), h.Redis)
		if err != nil {
			logger.LogError(logger.L(), "redis_purge_error", err, "deleted", n)
		} else {
			logger.L().Info("redis_purge_ok", "deleted", n)
		}
	}
	writeJSON(w, "reload", http.StatusOK, map[string]int{"min_level": lo, "max_level": hi})
}

// purgeQueryCache：删除全部 fence:* 查询缓存，返回已删除的键数；删除失败不中断扫描，返回首个错误
func purgeQueryCache(ctx context.Context, rc *redis.Client) (int, error) {
	var firstErr error
	n := 0
	it := rc.Scan(ctx, 0, "fence:*", 500).Iterator()
	for it.Next(ctx) {
		if err := rc.Del(ctx, it.Val()).Err(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("del %s: %w", it.Val(), err)
			}
			continue
		}
		n++
	}
	if err := it.Err(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("scan: %w", err)
	}
	return n, firstErr
}

func parseLatLon(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: lat %q", errBadParam, q.Get("lat"))
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: lon %q", errBadParam, q.Get("lon"))
	}
	return lat, lon, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadParam, s)
	}
	return n, nil
}

// 文档注释：错误到状态码的映射
// 约束：参数与级别错误 400；尚未导入任何围栏 404；其余 500 且只记录日志，不外泄细节。
func writeError(w http.ResponseWriter, route string, err error) {
	switch {
	case errors.Is(err, errBadParam), errors.Is(err, tilecode.ErrLevelOutOfRange):
		writeJSON(w, route, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNoSquares):
		writeJSON(w, route, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		logger.LogError(logger.L(), "api_error", err, "route", route)
		writeJSON(w, route, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, route string, status int, v any) {
	metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
