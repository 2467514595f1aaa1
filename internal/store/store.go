// 包 store：围栏索引的数据访问层（PostgreSQL / SQLite）
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qk-fence/internal/compact"
	"qk-fence/internal/logger"
	"qk-fence/internal/tilecode"

	"github.com/jmoiron/sqlx"
)

// ErrNoSquares：库中尚无任何围栏格
var ErrNoSquares = errors.New("no squares stored")

const insertBatch = 1000

// Store：持有连接池，提供围栏写入与格查询
type Store struct {
	db *sqlx.DB
}

func AttachDB(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sqlx.DB { return s.db }

// Square：geo_square 的一行，附带围栏名称
type Square struct {
	SquareID  int64  `db:"square_id"`
	FenceID   int64  `db:"fence_id"`
	FenceName string `db:"fence_name"`
	Level     int    `db:"square_level"`
	Quadkey   uint64 `db:"-"`
	RawQK     int64  `db:"square_qk"`
}

// Fence：围栏概要
type Fence struct {
	ID      int64  `db:"fence_id"`
	Name    string `db:"fence_name"`
	Squares int64  `db:"squares"`
}

// 文档注释：写入一个围栏及其全部 Area
// 背景：单事务内插入 geo_fence 获取 fence_id，再逐行写入 (level, quadkey)；与既有导入一样按批次记录进度。
// 约束：quadkey 以 int64 位模式保存，读取时还原；任何一步失败整体回滚。
func (s *Store) InsertFence(ctx context.Context, name string, areas []*compact.Area) (id int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO geo_fence(fence_name) VALUES(?) RETURNING fence_id`), name).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert fence: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO geo_square(fence_id, square_level, square_qk) VALUES(?,?,?)`))
	if err != nil {
		return 0, fmt.Errorf("prepare square insert: %w", err)
	}
	defer stmt.Close()
	count := 0
	for _, a := range areas {
		if a == nil {
			continue
		}
		for _, c := range a.Cells() {
			if _, err = stmt.ExecContext(ctx, id, c.Level, int64(c.Quadkey)); err != nil {
				return 0, fmt.Errorf("insert square: %w", err)
			}
			count++
			if count%insertBatch == 0 {
				logger.L().Debug("fence_insert_progress", "fence", name, "rows", count)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	logger.L().Info("fence_insert_done", "fence", name, "fence_id", id, "rows", count)
	return id, nil
}

// 文档注释：按 (level, quadkey) 集合查询命中的格
// 背景：先以 quadkey IN 列表走索引取候选，再在内存中按级别精确过滤，不同级别的数值可能相同。
func (s *Store) LookupCells(ctx context.Context, cells []tilecode.Cell) ([]Square, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	want := make(map[tilecode.Cell]struct{}, len(cells))
	qks := make([]int64, 0, len(cells))
	for _, c := range cells {
		if _, ok := want[c]; !ok {
			qks = append(qks, int64(c.Quadkey))
		}
		want[c] = struct{}{}
	}
	q, args, err := sqlx.In(`SELECT s.square_id, s.fence_id, f.fence_name, s.square_level, s.square_qk
        FROM geo_square s JOIN geo_fence f ON f.fence_id = s.fence_id
        WHERE s.square_qk IN (?)
        ORDER BY s.square_level DESC, s.square_id`, qks)
	if err != nil {
		return nil, err
	}
	var rows []Square
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("lookup squares: %w", err)
	}
	out := rows[:0]
	for _, r := range rows {
		r.Quadkey = uint64(r.RawQK)
		if _, ok := want[tilecode.Cell{Quadkey: r.Quadkey, Level: r.Level}]; ok {
			out = append(out, r)
		}
	}
	logger.L().Debug("db_lookup_done", "cells", len(cells), "candidates", len(rows), "hits", len(out))
	return out, nil
}

// LevelRange：已存储格的最小与最大级别
func (s *Store) LevelRange(ctx context.Context) (int, int, error) {
	var lo, hi sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT MIN(square_level), MAX(square_level) FROM geo_square`)
	if err := row.Scan(&lo, &hi); err != nil {
		return 0, 0, fmt.Errorf("level range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, ErrNoSquares
	}
	return int(lo.Int64), int(hi.Int64), nil
}

// ListFences：全部围栏及其格数量
func (s *Store) ListFences(ctx context.Context) ([]Fence, error) {
	var out []Fence
	err := s.db.SelectContext(ctx, &out, `SELECT f.fence_id, f.fence_name, COUNT(s.square_id) AS squares
        FROM geo_fence f LEFT JOIN geo_square s ON s.fence_id = f.fence_id
        GROUP BY f.fence_id, f.fence_name
        ORDER BY f.fence_id`)
	if err != nil {
		return nil, fmt.Errorf("list fences: %w", err)
	}
	return out, nil
}

// FenceArea：读回某围栏的全部格，重建为 Area（不再合并）
func (s *Store) FenceArea(ctx context.Context, fenceID int64) (*compact.Area, error) {
	var rows []Square
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT s.square_id, s.fence_id, f.fence_name, s.square_level, s.square_qk
        FROM geo_square s JOIN geo_fence f ON f.fence_id = s.fence_id
        WHERE s.fence_id = ?`), fenceID)
	if err != nil {
		return nil, fmt.Errorf("fence squares: %w", err)
	}
	a := compact.NewArea()
	for _, r := range rows {
		if err := a.Add(uint64(r.RawQK), r.Level); err != nil {
			return nil, err
		}
	}
	return a, nil
}
