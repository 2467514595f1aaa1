// 包 geoip：IP → 经纬度，基于 MaxMind GeoLite2/GeoIP2 City 库
package geoip

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/oschwald/geoip2-golang"
)

var (
	ErrBadIP      = errors.New("bad ip")
	ErrNoLocation = errors.New("no location for ip")
)

// Locator：只读，可并发使用
type Locator struct {
	db *geoip2.Reader
}

// Open：打开 mmdb 文件
func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip: %w", err)
	}
	return &Locator{db: db}, nil
}

// 文档注释：按 GEOIP_PATH 打开，未配置时尝试 data/geoip/GeoLite2-City.mmdb
// 约束：文件不存在返回 (nil, nil)，调用方据此关闭按 IP 查询
func OpenFromEnv() (*Locator, error) {
	p := os.Getenv("GEOIP_PATH")
	if p == "" {
		p = filepath.Join("data", "geoip", "GeoLite2-City.mmdb")
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return Open(p)
}

func (l *Locator) Close() error { return l.db.Close() }

// 文档注释：查询 IP 的经纬度
// 约束：库中无坐标（经纬度均为 0 且精度半径为 0）视为未命中
func (l *Locator) Locate(ip string) (lat, lon float64, err error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadIP, ip)
	}
	rec, err := l.db.City(addr)
	if err != nil {
		return 0, 0, fmt.Errorf("geoip lookup: %w", err)
	}
	loc := rec.Location
	if loc.Latitude == 0 && loc.Longitude == 0 && loc.AccuracyRadius == 0 {
		return 0, 0, ErrNoLocation
	}
	return loc.Latitude, loc.Longitude, nil
}
