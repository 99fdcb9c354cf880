package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fedutinova/minedash/internal/job"
	"github.com/fedutinova/minedash/internal/memq"
)

// StreamQueue runs jobs from a Redis stream consumer group. Job status is
// stored in Redis next to the stream, so every replica sharing the stream
// can answer Status and Recent.
type StreamQueue struct {
	client        *redis.Client
	stream        string
	group         string
	maxWait       time.Duration
	claimInterval time.Duration
	claimTimeout  time.Duration
	maxRetries    int64
	statusTTL     time.Duration
	keepRecent    int64

	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Config struct {
	Stream        string
	Group         string
	MaxJobTime    time.Duration
	ClaimInterval time.Duration
	ClaimTimeout  time.Duration
	MaxRetries    int64
	StatusTTL     time.Duration
	KeepRecent    int64
}

func DefaultConfig() Config {
	return Config{
		Stream:        "minedash:exports",
		Group:         "archivers",
		MaxJobTime:    30 * time.Second,
		ClaimInterval: 10 * time.Second,
		ClaimTimeout:  60 * time.Second,
		MaxRetries:    3,
		StatusTTL:     24 * time.Hour,
		KeepRecent:    500,
	}
}

// NewStreamQueue creates the consumer group if it does not exist yet.
func NewStreamQueue(ctx context.Context, client *redis.Client, cfg Config) (*StreamQueue, error) {
	q := &StreamQueue{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		maxWait:       cfg.MaxJobTime,
		claimInterval: cfg.ClaimInterval,
		claimTimeout:  cfg.ClaimTimeout,
		maxRetries:    cfg.MaxRetries,
		statusTTL:     cfg.StatusTTL,
		keepRecent:    cfg.KeepRecent,
		closing:       make(chan struct{}),
	}

	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !isGroupExists(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	slog.Info("stream queue ready", "stream", q.stream, "group", q.group, "claim_timeout", q.claimTimeout)
	return q, nil
}

func (q *StreamQueue) statusKey(id uuid.UUID) string {
	return q.stream + ":job:" + id.String()
}

func (q *StreamQueue) recentKey() string {
	return q.stream + ":recent"
}

func (q *StreamQueue) deadLetterKey() string {
	return q.stream + ":deadletter"
}

func (q *StreamQueue) Enqueue(ctx context.Context, j *job.Job) (uuid.UUID, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return uuid.Nil, memq.ErrQueueClosed
	}

	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	j.Status = job.StatusQueued
	j.Enqueued = time.Now()

	data, err := json.Marshal(j)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, q.statusKey(j.ID), data, q.statusTTL)
		p.ZAdd(ctx, q.recentKey(), redis.Z{Score: float64(j.Enqueued.UnixNano()), Member: j.ID.String()})
		if q.keepRecent > 0 {
			p.ZRemRangeByRank(ctx, q.recentKey(), 0, -q.keepRecent-1)
		}
		p.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: map[string]any{"id": j.ID.String(), "data": string(data)},
		})
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("add job to stream: %w", err)
	}

	slog.Debug("job enqueued", "id", j.ID, "type", j.Type, "stream", q.stream)
	return j.ID, nil
}

func (q *StreamQueue) Status(ctx context.Context, id uuid.UUID) (*job.Job, bool) {
	raw, err := q.client.Get(ctx, q.statusKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("read job status", "id", id, "err", err)
		}
		return nil, false
	}
	var j job.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		slog.Warn("decode job status", "id", id, "err", err)
		return nil, false
	}
	return &j, true
}

// Recent returns up to n jobs, newest first. Jobs whose status expired are
// left out. A negative n returns every tracked job.
func (q *StreamQueue) Recent(n int) []*job.Job {
	if n == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stop := int64(n - 1)
	if n < 0 {
		stop = -1
	}
	ids, err := q.client.ZRevRange(ctx, q.recentKey(), 0, stop).Result()
	if err != nil || len(ids) == 0 {
		if err != nil {
			slog.Warn("list recent jobs", "err", err)
		}
		return nil
	}

	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		keys = append(keys, q.statusKey(id))
	}
	if len(keys) == 0 {
		return nil
	}
	vals, err := q.client.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("read recent jobs", "err", err)
		return nil
	}

	out := make([]*job.Job, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var j job.Job
		if err := json.Unmarshal([]byte(s), &j); err == nil {
			out = append(out, &j)
		}
	}
	return out
}

// Len is the number of jobs not yet acknowledged: undelivered entries plus
// those delivered but still running.
func (q *StreamQueue) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	groups, err := q.client.XInfoGroups(ctx, q.stream).Result()
	if err != nil {
		return 0
	}
	for _, g := range groups {
		if g.Name == q.group {
			return int(g.Pending + g.Lag)
		}
	}
	return 0
}

// StartConsumers starts n readers and one claimer that retries entries left
// pending by a consumer that died.
func (q *StreamQueue) StartConsumers(ctx context.Context, n int, handler memq.JobHandler) {
	host := uuid.NewString()[:8]
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go q.consume(ctx, fmt.Sprintf("%s-%d", host, i+1), handler)
	}
	q.wg.Add(1)
	go q.claim(ctx, handler)
	slog.Info("stream consumers started", "count", n, "stream", q.stream)
}

func (q *StreamQueue) done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-q.closing:
		return true
	default:
		return false
	}
}

func (q *StreamQueue) consume(ctx context.Context, consumer string, handler memq.JobHandler) {
	defer q.wg.Done()
	for !q.done(ctx) {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			slog.Error("read from stream", "err", err, "consumer", consumer)
			time.Sleep(time.Second)
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				q.process(ctx, msg, handler, consumer)
			}
		}
	}
}

func (q *StreamQueue) claim(ctx context.Context, handler memq.JobHandler) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.claimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closing:
			return
		case <-ticker.C:
			q.claimStuck(ctx, handler)
		}
	}
}

func (q *StreamQueue) claimStuck(ctx context.Context, handler memq.JobHandler) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Idle:   q.claimTimeout,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("list pending entries", "err", err)
		}
		return
	}

	for _, p := range pending {
		msgs, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: "claimer",
			MinIdle:  q.claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			slog.Error("claim stuck entry", "message_id", p.ID, "err", err)
			continue
		}
		for _, msg := range msgs {
			if p.RetryCount > q.maxRetries {
				q.deadLetter(ctx, msg, fmt.Sprintf("exceeded max retries: %d", p.RetryCount))
				continue
			}
			slog.Warn("reclaimed stuck entry", "message_id", msg.ID, "idle", p.Idle, "retries", p.RetryCount)
			q.process(ctx, msg, handler, "claimer")
		}
	}
}

func (q *StreamQueue) process(ctx context.Context, msg redis.XMessage, handler memq.JobHandler, consumer string) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		slog.Error("stream entry without data", "message_id", msg.ID)
		q.ack(ctx, msg.ID)
		return
	}
	var j job.Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		slog.Error("decode stream entry", "message_id", msg.ID, "err", err)
		q.ack(ctx, msg.ID)
		return
	}

	now := time.Now()
	j.Status = job.StatusRunning
	j.Started = &now
	j.Error = ""
	q.save(ctx, &j)

	work := j.Clone()
	runCtx, cancel := context.WithTimeout(ctx, q.maxWait)
	err := handler(runCtx, work)
	cancel()

	fin := time.Now()
	j.Finished = &fin
	if err != nil {
		j.Status = job.StatusFailed
		j.Error = err.Error()
		slog.Error("job failed", "id", j.ID, "type", j.Type, "err", err, "consumer", consumer)
	} else {
		j.Status = job.StatusSucceeded
		j.Result = work.Result
		slog.Info("job done", "id", j.ID, "type", j.Type, "consumer", consumer, "duration", fin.Sub(now))
	}
	q.save(ctx, &j)
	q.ack(ctx, msg.ID)
}

func (q *StreamQueue) save(ctx context.Context, j *job.Job) {
	data, err := json.Marshal(j)
	if err != nil {
		slog.Error("marshal job status", "id", j.ID, "err", err)
		return
	}
	if err := q.client.Set(ctx, q.statusKey(j.ID), data, q.statusTTL).Err(); err != nil {
		slog.Error("write job status", "id", j.ID, "err", err)
	}
}

func (q *StreamQueue) ack(ctx context.Context, messageID string) {
	if err := q.client.XAck(ctx, q.stream, q.group, messageID).Err(); err != nil {
		slog.Error("ack stream entry", "message_id", messageID, "err", err)
	}
}

func (q *StreamQueue) deadLetter(ctx context.Context, msg redis.XMessage, reason string) {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.deadLetterKey(),
		Values: map[string]any{
			"original_id": msg.ID,
			"id":          msg.Values["id"],
			"data":        msg.Values["data"],
			"reason":      reason,
			"moved_at":    time.Now().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		slog.Error("move entry to dead letter", "message_id", msg.ID, "err", err)
		return
	}
	slog.Warn("entry moved to dead letter", "message_id", msg.ID, "reason", reason)
	q.ack(ctx, msg.ID)
}

// DeadLetterCount is the number of entries given up on.
func (q *StreamQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.deadLetterKey()).Result()
}

// RetryDeadLetter moves one dead-lettered entry back onto the stream.
func (q *StreamQueue) RetryDeadLetter(ctx context.Context, messageID string) error {
	msgs, err := q.client.XRange(ctx, q.deadLetterKey(), messageID, messageID).Result()
	if err != nil {
		return fmt.Errorf("read dead letter entry: %w", err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("dead letter entry %s: not found", messageID)
	}
	data, ok := msgs[0].Values["data"].(string)
	if !ok {
		return fmt.Errorf("dead letter entry %s: no data", messageID)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"id": msgs[0].Values["id"], "data": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("re-add entry: %w", err)
	}
	if err := q.client.XDel(ctx, q.deadLetterKey(), messageID).Err(); err != nil {
		slog.Warn("delete dead letter entry", "message_id", messageID, "err", err)
	}
	return nil
}

// Close stops the consumers. Entries they had not acknowledged stay pending
// and are claimed by the next consumer of the group.
func (q *StreamQueue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.closing)
	})
	q.wg.Wait()
	return nil
}

func isGroupExists(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}

var _ memq.JobQueue = (*StreamQueue)(nil)
