package util

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NameFromPath returns the base file name of path without its extension.
// Both separators are accepted since documents may come from another host.
func NameFromPath(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	base := filepath.Base(filepath.FromSlash(path))

	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}

	return base
}

// IDGenerator mints entry ids from the wall clock in milliseconds. Ids are
// strictly increasing within a process even when the clock stands still or
// goes back, and never fall at or below an id seen through Observe.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWithClock(time.Now)
}

func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}

	g.last = id

	return id
}

// Observe raises the floor so ids already stored are never minted again.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id > g.last {
		g.last = id
	}
}
