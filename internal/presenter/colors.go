package presenter

import "sync"

var defaultPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// ColorCache hands each canonical host a color on first sight and keeps it
// for the lifetime of the cache.
type ColorCache struct {
	mu       sync.Mutex
	palette  []string
	assigned map[string]string
}

func NewColorCache(palette ...string) *ColorCache {
	if len(palette) == 0 {
		palette = defaultPalette
	}
	return &ColorCache{palette: palette, assigned: make(map[string]string)}
}

func (c *ColorCache) Color(host string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if color, ok := c.assigned[host]; ok {
		return color
	}
	color := c.palette[len(c.assigned)%len(c.palette)]
	c.assigned[host] = color
	return color
}

func (c *ColorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.assigned)
}
