package commands

import (
	"sync"
	"time"
)

type cacheItem struct {
	ChartData  []byte
	Caption    string
	Expiration time.Time
}

var (
	chartCacheMu sync.Mutex
	chartCache   = make(map[string]*cacheItem)
)

func cacheGet(symbol string) (*cacheItem, bool) {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()

	if item, found := chartCache[symbol]; found && time.Now().Before(item.Expiration) {
		return item, true
	}
	return nil, false
}

func cacheSet(symbol string, chartData []byte, caption string, duration time.Duration) {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()

	chartCache[symbol] = &cacheItem{
		ChartData:  chartData,
		Caption:    caption,
		Expiration: time.Now().Add(duration),
	}
}
