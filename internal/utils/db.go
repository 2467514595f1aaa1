// 包 utils：数据库与 Redis 连接工具，统一环境变量读取
package utils

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// 文档注释：由 PG_* 环境变量组装 postgres URL
// 约束：用户名与口令经 url.UserPassword 转义，口令为空时省略。
func BuildPostgresDSNFromEnv() string {
	user := url.User(envOr("PG_USER", "postgres"))
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		user = url.UserPassword(user.Username(), pass)
	}
	u := url.URL{
		Scheme:   DriverPostgres,
		User:     user,
		Host:     net.JoinHostPort(envOr("PG_HOST", "localhost"), envOr("PG_PORT", "5432")),
		Path:     "/" + envOr("PG_DB", "qkfence"),
		RawQuery: url.Values{"sslmode": {envOr("PG_SSLMODE", "disable")}}.Encode(),
	}
	return u.String()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func OpenPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(EnvInt("PG_MAX_OPEN_CONNS", 50))
	db.SetMaxIdleConns(EnvInt("PG_MAX_IDLE_CONNS", 25))
	return db, nil
}

// 文档注释：打开 SQLite（纯 Go 驱动）
// 约束：单连接，":memory:" 库在多连接下彼此不可见；文件库的父目录按需创建。
func OpenSQLite(path string) (*sqlx.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// 文档注释：按 DB_DRIVER 打开数据库
// 约束：默认 sqlite，路径取 SQLITE_PATH（默认 data/qk-fences.db）；postgres 使用 PG_* 组装 DSN。
func OpenDBFromEnv() (*sqlx.DB, error) {
	switch d := os.Getenv("DB_DRIVER"); d {
	case "", DriverSQLite:
		return OpenSQLite(envOr("SQLITE_PATH", filepath.Join("data", "qk-fences.db")))
	case DriverPostgres:
		return OpenPostgres(BuildPostgresDSNFromEnv())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", d)
	}
}
