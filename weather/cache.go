package weather

import (
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// forecastCache is a TTL cache of forecasts keyed by normalized city and day count.
// A nil cache is valid and never hits.
type forecastCache struct {
	cache *ttlcache.Cache[string, *Forecast]
}

func newForecastCache(ttl time.Duration) *forecastCache {
	c := ttlcache.New[string, *Forecast](
		ttlcache.WithTTL[string, *Forecast](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Forecast](),
	)
	go c.Start()
	return &forecastCache{cache: c}
}

func cacheKey(city string, days int) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strconv.Itoa(days)
}

func (fc *forecastCache) get(city string, days int) *Forecast {
	if fc == nil {
		return nil
	}
	item := fc.cache.Get(cacheKey(city, days))
	if item == nil {
		return nil
	}
	return item.Value()
}

func (fc *forecastCache) set(city string, days int, f *Forecast) {
	if fc == nil {
		return
	}
	fc.cache.Set(cacheKey(city, days), f, ttlcache.DefaultTTL)
}

func (fc *forecastCache) Close() {
	fc.cache.Stop()
}
