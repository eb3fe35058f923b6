// Package tz resolves IANA time-zone names through the host time-zone
// database, caching loaded locations.
package tz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrUnknownZone is returned for names the host database cannot load.
var ErrUnknownZone = errors.New("unknown time zone")

const defaultCacheSize = 64

// Resolver turns a zone name into a *time.Location.
type Resolver interface {
	Location(name string) (*time.Location, error)
}

// Cache is a Resolver backed by time.LoadLocation with an LRU in front.
// It is safe for concurrent use.
type Cache struct {
	cache *lru.Cache[string, *time.Location]
}

// NewCache creates a Cache holding up to size locations. size <= 0 uses a
// default.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	c, _ := lru.New[string, *time.Location](size)
	return &Cache{cache: c}
}

// Location returns the named zone. An empty name is an error; "UTC" and
// "Local" follow time.LoadLocation.
func (c *Cache) Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("timezone: %w: empty name", ErrUnknownZone)
	}
	if loc, ok := c.cache.Get(name); ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w: %q", ErrUnknownZone, name)
	}
	c.cache.Add(name, loc)
	return loc, nil
}

// Len reports how many zones are cached.
func (c *Cache) Len() int { return c.cache.Len() }

var defaultResolver = NewCache(defaultCacheSize)

// Default returns the process-wide resolver.
func Default() Resolver { return defaultResolver }

// Load resolves name with the default resolver.
func Load(name string) (*time.Location, error) {
	return defaultResolver.Location(name)
}
