// 程序入口：读取配置、初始化依赖并启动围栏查询服务；API 注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"qk-fence/internal/api"
	"qk-fence/internal/fence"
	"qk-fence/internal/geoip"
	"qk-fence/internal/logger"
	"qk-fence/internal/metrics"
	"qk-fence/internal/middleware"
	"qk-fence/internal/migrate"
	"qk-fence/internal/store"
	"qk-fence/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	db, err := utils.OpenDBFromEnv()
	if err != nil {
		logger.LogError(l, "db_open_error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.LogError(l, "db_ping_error", err)
		os.Exit(1)
	}
	l.Info("db_open_ok", "driver", db.DriverName())
	if err := migrate.EnsureSchema(db); err != nil {
		logger.LogError(l, "schema_error", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	ttl := time.Duration(utils.EnvInt("QUERY_CACHE_TTL_S", 3600)) * time.Second
	engine := fence.NewEngine(st, fence.Options{CacheTTL: ttl})
	if lo, hi, err := engine.Reload(context.Background()); err != nil {
		if errors.Is(err, store.ErrNoSquares) {
			l.Info("fence_index_empty")
		} else {
			logger.LogError(l, "fence_levels_error", err)
		}
	} else {
		l.Info("fence_index_ready", "min_level", lo, "max_level", hi)
	}

	deps := api.Deps{Engine: engine, Fences: st, CacheTTL: ttl, AdminToken: os.Getenv("ADMIN_TOKEN")}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(context.Background()).Err(); err != nil {
		logger.LogError(l, "redis_ping_error", err)
	} else {
		l.Info("redis_ping_ok")
		deps.Redis = rc
	}

	loc, err := geoip.OpenFromEnv()
	switch {
	case err != nil:
		logger.LogError(l, "geoip_open_error", err)
	case loc == nil:
		l.Info("geoip_disabled")
	default:
		defer loc.Close()
		deps.GeoIP = loc
		l.Info("geoip_ready")
	}

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, api.BuildRoutes(deps)))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := middleware.Wrap(logger.AccessMiddleware(l)(mux))
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.LogError(l, "listen_error", err)
		os.Exit(1)
	}
}
