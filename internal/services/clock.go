package services

import (
	"time"

	"github.com/google/uuid"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	New() string
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type uuidGenerator struct{}

func (uuidGenerator) New() string { return uuid.New().String() }

type deps struct {
	clock Clock
	ids   IDGenerator
}

// Option overrides a service's clock or id source, mainly for tests.
type Option func(*deps)

func WithClock(c Clock) Option {
	return func(d *deps) { d.clock = c }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(d *deps) { d.ids = g }
}

func newDeps(opts []Option) deps {
	d := deps{clock: realClock{}, ids: uuidGenerator{}}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
