package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"qk-fence/internal/borders"
	"qk-fence/internal/fence"
	"qk-fence/internal/logger"
	"qk-fence/internal/migrate"
	"qk-fence/internal/store"
	"qk-fence/internal/utils"

	"github.com/joho/godotenv"
)

// 文档注释：从 GeoJSON 边界构建围栏索引
// 背景：每个命名区域的每个多边形在 FENCE_LEVEL 下投影、扫描填充并压缩，全部 Area 写为一个围栏。
// 约束：区域名取命令行参数，缺省时读 FENCE_COUNTRY；都未给出时仅列出可用区域名。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	path := os.Getenv("BORDERS_PATH")
	if path == "" {
		path = "data/countries.geojson"
	}
	src, err := borders.Load(path, os.Getenv("BORDERS_NAME_PROP"))
	if err != nil {
		logger.LogError(l, "borders_load_error", err, "path", path)
		os.Exit(1)
	}
	names := os.Args[1:]
	if len(names) == 0 && os.Getenv("FENCE_COUNTRY") != "" {
		names = []string{os.Getenv("FENCE_COUNTRY")}
	}
	if len(names) == 0 {
		for _, n := range src.Names() {
			fmt.Println(n)
		}
		return
	}

	level := utils.EnvInt("FENCE_LEVEL", 20)
	db, err := utils.OpenDBFromEnv()
	if err != nil {
		logger.LogError(l, "db_open_error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		logger.LogError(l, "schema_error", err)
		os.Exit(1)
	}
	b := &fence.Builder{
		Store:   store.AttachDB(db),
		Level:   level,
		Workers: utils.EnvInt("FENCE_WORKERS", runtime.NumCPU()),
	}
	ctx := context.Background()
	failed := false
	for _, name := range names {
		mp, err := src.Shapes(name)
		if err != nil {
			logger.LogError(l, "fence_region_error", err, "fence", name)
			failed = true
			continue
		}
		polys, err := borders.Project(mp, level)
		if err != nil {
			logger.LogError(l, "fence_project_error", err, "fence", name)
			failed = true
			continue
		}
		l.Info("fence_build_begin", "fence", name, "shapes", len(mp), "kept", len(polys), "level", level)
		id, areas, err := b.Build(ctx, name, polys)
		if err != nil {
			logger.LogError(l, "fence_build_error", err, "fence", name)
			failed = true
			continue
		}
		for i, a := range areas {
			l.Info("fence_shape_squares", "fence", name, "shape", i, "squares", a.Len(), "levels", a.Levels())
		}
		l.Info("fence_build_done", "fence", name, "fence_id", id)
	}
	if failed {
		os.Exit(1)
	}
}
