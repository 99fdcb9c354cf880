package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fedutinova/minedash/internal/job"
	"github.com/fedutinova/minedash/internal/memq"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Skipf("Skipping stream queue test: invalid Redis URL: %v", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping stream queue test: Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// newTestQueue creates a queue on a throwaway stream and removes every key
// it used when the test ends.
func newTestQueue(t *testing.T, client *redis.Client, claimTimeout time.Duration) *StreamQueue {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Stream = "test:exports:" + uuid.NewString()[:8]
	cfg.Group = "test-archivers"
	cfg.MaxJobTime = 5 * time.Second
	cfg.ClaimInterval = 500 * time.Millisecond
	cfg.ClaimTimeout = claimTimeout

	q, err := NewStreamQueue(context.Background(), client, cfg)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, cfg.Stream+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})
	return q
}

func waitStatus(t *testing.T, q *StreamQueue, id uuid.UUID, want job.Status) *job.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := q.Status(context.Background(), id); ok && j.Status == want {
			return j
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for status %s", want)
	return nil
}

func TestStreamQueue_EnqueueAndConsume(t *testing.T) {
	client := getTestRedisClient(t)
	q := newTestQueue(t, client, 30*time.Second)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.StartConsumers(ctx, 2, func(ctx context.Context, j *job.Job) error {
		j.Result = "http://archive/" + j.ID.String() + ".csv"
		return nil
	})

	id, err := q.Enqueue(ctx, &job.Job{Type: job.TypeExportArchive, Payload: []byte(`{"report":"minerals"}`)})
	if err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	j := waitStatus(t, q, id, job.StatusSucceeded)
	if j.Result != "http://archive/"+id.String()+".csv" {
		t.Errorf("unexpected result %q", j.Result)
	}
	if j.Started == nil || j.Finished == nil {
		t.Errorf("expected started/finished timestamps")
	}
}

func TestStreamQueue_JobFailure(t *testing.T) {
	client := getTestRedisClient(t)
	q := newTestQueue(t, client, 30*time.Second)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.StartConsumers(ctx, 1, func(ctx context.Context, j *job.Job) error {
		j.Result = "ignored"
		return errors.New("archive unavailable")
	})

	id, err := q.Enqueue(ctx, &job.Job{Type: job.TypeExportArchive, Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	j := waitStatus(t, q, id, job.StatusFailed)
	if j.Error != "archive unavailable" {
		t.Errorf("unexpected error %q", j.Error)
	}
	if j.Result != "" {
		t.Errorf("expected no result on failure, got %q", j.Result)
	}
}

func TestStreamQueue_RecentNewestFirst(t *testing.T) {
	client := getTestRedisClient(t)
	q := newTestQueue(t, client, 30*time.Second)
	defer q.Close()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := q.Enqueue(context.Background(), &job.Job{Type: job.TypeExportArchive})
		if err != nil {
			t.Fatalf("Failed to enqueue job %d: %v", i, err)
		}
		ids = append(ids, id)
		time.Sleep(time.Millisecond)
	}

	recent := q.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(recent))
	}
	if recent[0].ID != ids[2] || recent[1].ID != ids[1] {
		t.Errorf("unexpected order: %s, %s", recent[0].ID, recent[1].ID)
	}
	if len(q.Recent(-1)) != 3 {
		t.Errorf("expected all 3 jobs")
	}
	if q.Len() != 3 {
		t.Errorf("expected 3 undelivered jobs, got %d", q.Len())
	}
}

func TestStreamQueue_PendingSurvivesRestart(t *testing.T) {
	client := getTestRedisClient(t)
	q1 := newTestQueue(t, client, time.Second)

	id, err := q1.Enqueue(context.Background(), &job.Job{Type: job.TypeExportArchive, Payload: []byte(`{"report":"countries"}`)})
	if err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}
	if err := q1.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, err := q1.Enqueue(context.Background(), &job.Job{}); !errors.Is(err, memq.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Stream = q1.stream
	cfg.Group = q1.group
	cfg.ClaimInterval = 500 * time.Millisecond
	cfg.ClaimTimeout = time.Second
	q2, err := NewStreamQueue(context.Background(), client, cfg)
	if err != nil {
		t.Fatalf("Failed to create second queue: %v", err)
	}
	defer q2.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	processed := make(chan string, 1)
	q2.StartConsumers(ctx, 1, func(ctx context.Context, j *job.Job) error {
		processed <- string(j.Payload)
		return nil
	})

	select {
	case payload := <-processed:
		if payload != `{"report":"countries"}` {
			t.Errorf("unexpected payload %s", payload)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Timeout waiting for persisted job")
	}
	waitStatus(t, q2, id, job.StatusSucceeded)
}

func TestStreamQueue_DeadLetterRetry(t *testing.T) {
	client := getTestRedisClient(t)
	q := newTestQueue(t, client, time.Second)
	defer q.Close()
	ctx := context.Background()

	err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.deadLetterKey(),
		ID:     "1-0",
		Values: map[string]any{"id": uuid.NewString(), "data": `{"type":"export_archive"}`, "reason": "test"},
	}).Err()
	if err != nil {
		t.Fatalf("seed dead letter: %v", err)
	}

	n, err := q.DeadLetterCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 dead letter entry, got %d (%v)", n, err)
	}
	if err := q.RetryDeadLetter(ctx, "1-0"); err != nil {
		t.Fatalf("RetryDeadLetter error: %v", err)
	}
	if n, _ := q.DeadLetterCount(ctx); n != 0 {
		t.Errorf("expected dead letter to be empty, got %d", n)
	}
	if l, _ := client.XLen(ctx, q.stream).Result(); l != 1 {
		t.Errorf("expected entry back on the stream, got %d", l)
	}
	if err := q.RetryDeadLetter(ctx, "2-0"); err == nil {
		t.Error("expected error for missing entry")
	}
}
