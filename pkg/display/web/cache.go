package web

import (
	"sync"

	"github.com/cespare/xxhash"
)

type cacheEntry struct {
	hash uint64
	name string
	data []byte
}

// CachedImage describes an image held by the cache.
type CachedImage struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Checksum uint64 `json:"checksum,string"`
}

// cache is a fixed size ring of recently uploaded images, keyed
// by their xxhash.
type cache struct {
	cache []*cacheEntry
	idx   int
	size  int
	sync.RWMutex
}

func newCache(size int) *cache {
	c := &cache{
		cache: make([]*cacheEntry, size),
		size:  size,
	}
	for i := 0; i < size; i++ {
		c.cache[i] = &cacheEntry{}
	}

	return c
}

// add stores data under its checksum unless it is already present,
// evicting the oldest entry once the ring is full.
func (c *cache) add(name string, data []byte) uint64 {
	hash := xxhash.Sum64(data)
	if c.size == 0 {
		return hash
	}

	c.Lock()
	defer c.Unlock()
	if i := c.index(hash); i >= 0 {
		c.cache[i].name = name
		return hash
	}

	c.cache[c.idx].hash = hash
	c.cache[c.idx].name = name
	c.cache[c.idx].data = data
	c.idx = (c.idx + 1) % c.size

	return hash
}

func (c *cache) get(hash uint64) (string, []byte, bool) {
	c.RLock()
	defer c.RUnlock()

	i := c.index(hash)
	if i < 0 {
		return "", nil, false
	}
	return c.cache[i].name, c.cache[i].data, true
}

// list returns the cached images, most recent first.
func (c *cache) list() []CachedImage {
	c.RLock()
	defer c.RUnlock()

	images := make([]CachedImage, 0, c.size)
	for n := 1; n <= c.size; n++ {
		e := c.cache[(c.idx-n+c.size)%c.size]
		if e.data == nil {
			continue
		}
		images = append(images, CachedImage{Name: e.name, Size: len(e.data), Checksum: e.hash})
	}
	return images
}

func (c *cache) index(hash uint64) int {
	for i, e := range c.cache {
		if e.data != nil && e.hash == hash {
			return i
		}
	}

	return -1
}
