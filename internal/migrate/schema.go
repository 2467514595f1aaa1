package migrate

import (
	"fmt"

	"qk-fence/internal/logger"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS geo_fence (
        fence_id BIGSERIAL PRIMARY KEY,
        fence_name TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS geo_square (
        square_id BIGSERIAL PRIMARY KEY,
        fence_id BIGINT NOT NULL REFERENCES geo_fence(fence_id) ON DELETE CASCADE,
        square_level SMALLINT NOT NULL CHECK (square_level BETWEEN 1 AND 32),
        square_qk BIGINT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_geo_square_qk ON geo_square(square_qk, square_level)`,
	`CREATE INDEX IF NOT EXISTS idx_geo_square_fence ON geo_square(fence_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS geo_fence (
        fence_id INTEGER PRIMARY KEY AUTOINCREMENT,
        fence_name TEXT NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`,
	`CREATE TABLE IF NOT EXISTS geo_square (
        square_id INTEGER PRIMARY KEY AUTOINCREMENT,
        fence_id INTEGER NOT NULL REFERENCES geo_fence(fence_id) ON DELETE CASCADE,
        square_level INTEGER NOT NULL CHECK (square_level BETWEEN 1 AND 32),
        square_qk INTEGER NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_geo_square_qk ON geo_square(square_qk, square_level)`,
	`CREATE INDEX IF NOT EXISTS idx_geo_square_fence ON geo_square(fence_id)`,
}

// 文档注释：首次运行自动创建围栏表与索引
// 背景：geo_fence 存名称，geo_square 每行一个 (level, quadkey)；quadkey 以 BIGINT 保存 uint64 的位模式。
// 约束：使用 IF NOT EXISTS，可重复执行；按驱动名选择方言。
func EnsureSchema(db *sqlx.DB) error {
	var stmts []string
	switch db.DriverName() {
	case "postgres":
		stmts = postgresSchema
	case "sqlite":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done", "driver", db.DriverName())
	return nil
}
