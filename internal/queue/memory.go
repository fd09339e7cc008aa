package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/models"
)

var ErrQueueFull = errors.New("queue is full")

// Memory is an in-process Jobs and Progress implementation for tests and
// single-binary runs.
type Memory struct {
	jobs chan models.BuildJob

	mu          sync.Mutex
	subscribers map[string]map[chan models.BuildProgress]struct{}
	published   []models.BuildProgress
	enqueueErr  error
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 64
	}
	return &Memory{
		jobs:        make(chan models.BuildJob, capacity),
		subscribers: make(map[string]map[chan models.BuildProgress]struct{}),
	}
}

// FailEnqueue makes every later Enqueue return err; nil restores normal
// behaviour.
func (m *Memory) FailEnqueue(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueErr = err
}

func (m *Memory) Enqueue(_ context.Context, job models.BuildJob) error {
	m.mu.Lock()
	err := m.enqueueErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case m.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *Memory) Dequeue(ctx context.Context, timeout time.Duration) (*models.BuildJob, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-m.jobs:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports how many jobs are waiting.
func (m *Memory) Len() int { return len(m.jobs) }

func (m *Memory) PublishProgress(_ context.Context, p models.BuildProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, p)
	for ch := range m.subscribers[p.DeploymentID] {
		select {
		case ch <- p:
		default:
			// Slow listeners miss events, as with Redis pub/sub.
		}
	}
	return nil
}

// Published returns every event published so far.
func (m *Memory) Published() []models.BuildProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BuildProgress(nil), m.published...)
}

func (m *Memory) SubscribeProgress(_ context.Context, deploymentID string) (<-chan models.BuildProgress, func(), error) {
	ch := make(chan models.BuildProgress, 16)
	m.mu.Lock()
	if m.subscribers[deploymentID] == nil {
		m.subscribers[deploymentID] = make(map[chan models.BuildProgress]struct{})
	}
	m.subscribers[deploymentID][ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers[deploymentID], ch)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, stop, nil
}
