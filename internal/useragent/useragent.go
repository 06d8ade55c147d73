package useragent

import (
	"math/rand/v2"
)

// Source supplies the user-agent string for one request.
type Source interface {
	UserAgent() string
}

// Rotating picks uniformly from a fixed pool. It is safe for concurrent use.
type Rotating struct {
	agents []string
}

func NewRotating(agents []string) *Rotating {
	pool := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		pool = Defaults()
	}
	return &Rotating{agents: pool}
}

func (r *Rotating) UserAgent() string {
	return r.agents[rand.IntN(len(r.agents))]
}

// Static always returns the same string.
type Static string

func (s Static) UserAgent() string {
	return string(s)
}

func Defaults() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}
