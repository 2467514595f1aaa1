package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"qk-fence/internal/fence"
	"qk-fence/internal/logger"
	"qk-fence/internal/store"
	"qk-fence/internal/utils"

	"github.com/joho/godotenv"
)

// 文档注释：命令行点查询
// 约束：级别范围取库中已存储的最小/最大级别；结果以 JSON 数组输出到标准输出。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: fence-query latitude longitude")
		os.Exit(2)
	}
	lat, err1 := strconv.ParseFloat(os.Args[1], 64)
	lon, err2 := strconv.ParseFloat(os.Args[2], 64)
	if err1 != nil || err2 != nil {
		fmt.Fprintln(os.Stderr, "latitude and longitude must be numbers")
		os.Exit(2)
	}
	db, err := utils.OpenDBFromEnv()
	if err != nil {
		logger.LogError(l, "db_open_error", err)
		os.Exit(1)
	}
	defer db.Close()
	e := fence.NewEngine(store.AttachDB(db), fence.Options{})
	matches, err := e.Query(context.Background(), lat, lon)
	if err != nil {
		logger.LogError(l, "fence_query_error", err, "lat", lat, "lon", lon)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(matches)
}
