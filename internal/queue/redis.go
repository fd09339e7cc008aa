// Package queue carries build jobs from the API to the worker and build
// progress from the worker back to SSE clients.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitesmithapp/sitesmith/internal/models"
)

// Jobs is the build job queue.
type Jobs interface {
	Enqueue(ctx context.Context, job models.BuildJob) error
	// Dequeue blocks up to timeout. It returns nil, nil when no job arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*models.BuildJob, error)
}

// Progress fans build progress out to listeners of one deployment.
type Progress interface {
	PublishProgress(ctx context.Context, p models.BuildProgress) error
	// SubscribeProgress returns a channel of events for deploymentID and a
	// function that ends the subscription and closes the channel.
	SubscribeProgress(ctx context.Context, deploymentID string) (<-chan models.BuildProgress, func(), error)
}

func ProgressChannel(deploymentID string) string {
	return "deploy:progress:" + deploymentID
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// Redis implements Jobs with LPUSH/BRPOP on one list and Progress with
// pub/sub channels.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (q *Redis) Enqueue(ctx context.Context, job models.BuildJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context, timeout time.Duration) (*models.BuildJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// res is [key, value].
	var job models.BuildJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (q *Redis) PublishProgress(ctx context.Context, p models.BuildProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := q.client.Publish(ctx, ProgressChannel(p.DeploymentID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish progress: %w", err)
	}
	return nil
}

func (q *Redis) SubscribeProgress(ctx context.Context, deploymentID string) (<-chan models.BuildProgress, func(), error) {
	sub := q.client.Subscribe(ctx, ProgressChannel(deploymentID))
	// Wait for the subscription confirmation so no event is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan models.BuildProgress, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var p models.BuildProgress
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					log.Printf("[Progress] Dropping malformed event on %s: %v\n", msg.Channel, err)
					continue
				}
				select {
				case out <- p:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			sub.Close()
		})
	}
	return out, stop, nil
}
