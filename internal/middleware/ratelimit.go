package middleware

import (
	"net/http"
	"os"
	"strconv"

	"qk-fence/internal/logger"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"
)

// 文档注释：全局令牌桶限流
// 约束：不排队，超限直接 429；qps <= 0 时不限流。
func RateLimit(qps int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if qps <= 0 {
			return next
		}
		lim := rate.NewLimiter(rate.Limit(qps), qps)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Compress：响应 gzip 压缩，小于 1KB 的响应不压缩
func Compress(next http.Handler) http.Handler {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(1024), gzhttp.CompressionLevel(6))
	if err != nil {
		return gzhttp.GzipHandler(next)
	}
	return wrap(next)
}

// 文档注释：按环境变量组装中间件链
// 约束：RATE_LIMIT_ENABLED=true 时启用限流，速率取 RATE_LIMIT_QPS（默认 200）；压缩始终启用。
func Wrap(next http.Handler) http.Handler {
	h := Compress(next)
	if os.Getenv("RATE_LIMIT_ENABLED") == "true" {
		qps := 200
		if s := os.Getenv("RATE_LIMIT_QPS"); s != "" {
			if n, e := strconv.Atoi(s); e == nil && n > 0 {
				qps = n
			}
		}
		h = RateLimit(qps)(h)
	}
	return h
}
