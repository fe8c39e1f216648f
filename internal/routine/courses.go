package routine

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// CourseSource resolves course codes to display names for a department.
type CourseSource interface {
	FetchCourseNames(ctx context.Context, department string) (map[string]string, error)
}

// CourseNames caches course display names per department. A failed fetch is
// not cached; lookups then fall back to the course code.
type CourseNames struct {
	source CourseSource

	mu     sync.RWMutex
	byDept map[string]map[string]string
	// bumped by Invalidate; a fetch started under an older generation is
	// not stored
	gen map[string]uint64
}

func NewCourseNames(source CourseSource) *CourseNames {
	return &CourseNames{
		source: source,
		byDept: make(map[string]map[string]string),
		gen:    make(map[string]uint64),
	}
}

// Lookup returns the display name of code, or code itself when unknown.
func (c *CourseNames) Lookup(ctx context.Context, department, code string) string {
	c.mu.RLock()
	names, ok := c.byDept[department]
	started := c.gen[department]
	c.mu.RUnlock()

	if !ok {
		fetched, err := c.source.FetchCourseNames(ctx, department)
		if err != nil {
			log.Debug().Err(err).Str("department", department).Msg("course names unavailable")
			return code
		}
		if fetched == nil {
			fetched = map[string]string{}
		}
		c.mu.Lock()
		if c.gen[department] == started {
			c.byDept[department] = fetched
		}
		c.mu.Unlock()
		names = fetched
	}

	if name := names[code]; name != "" {
		return name
	}
	return code
}

func (c *CourseNames) Invalidate(department string) {
	c.mu.Lock()
	delete(c.byDept, department)
	c.gen[department]++
	c.mu.Unlock()
}
