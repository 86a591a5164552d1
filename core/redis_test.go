package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client)
}

func TestRedisQueueReserveAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "pending", "42"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Reserve(ctx, "pending", "processing", time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if job != "42" {
		t.Fatalf("got job %q, want 42", job)
	}

	if _, err := q.Reserve(ctx, "pending", "processing", time.Minute); err != redis.Nil {
		t.Fatalf("expected redis.Nil on empty pending list, got %v", err)
	}

	if err := q.Ack(ctx, "processing", "42"); err != nil {
		t.Fatalf("ack: %v", err)
	}

	expired, err := q.RequeueExpired(ctx, "processing", "pending", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no expired jobs after ack, got %v", expired)
	}
}

func TestRedisQueueRequeueExpired(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "pending", "7"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Reserve(ctx, "pending", "processing", -time.Second); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	requeued, err := q.RequeueExpired(ctx, "processing", "pending", time.Now())
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(requeued) != 1 || requeued[0] != "7" {
		t.Fatalf("got %v, want [7]", requeued)
	}

	job, err := q.Reserve(ctx, "pending", "processing", time.Minute)
	if err != nil {
		t.Fatalf("reserve after requeue: %v", err)
	}
	if job != "7" {
		t.Fatalf("got %q, want 7", job)
	}
}
