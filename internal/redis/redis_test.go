package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func getTestService(t *testing.T) *Service {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	svc, err := New(redisURL)
	if err != nil {
		t.Skipf("Skipping Redis test: Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_RevokeSession(t *testing.T) {
	svc := getTestService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.NewString()
	defer svc.Client().Del(context.Background(), revokedKey(id))

	revoked, err := svc.IsSessionRevoked(ctx, id)
	if err != nil {
		t.Fatalf("IsSessionRevoked error: %v", err)
	}
	if revoked {
		t.Fatalf("fresh session reported as revoked")
	}

	if err := svc.RevokeSession(ctx, id, time.Minute); err != nil {
		t.Fatalf("RevokeSession error: %v", err)
	}
	revoked, err = svc.IsSessionRevoked(ctx, id)
	if err != nil {
		t.Fatalf("IsSessionRevoked error: %v", err)
	}
	if !revoked {
		t.Fatalf("expected session to be revoked")
	}

	ttl, err := svc.Client().TTL(ctx, revokedKey(id)).Result()
	if err != nil {
		t.Fatalf("TTL error: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within a minute, got %v", ttl)
	}
}

func TestService_RevokeSession_ExpiredTokenIsNoop(t *testing.T) {
	svc := getTestService(t)
	ctx := context.Background()

	id := uuid.NewString()
	if err := svc.RevokeSession(ctx, id, 0); err != nil {
		t.Fatalf("RevokeSession error: %v", err)
	}
	revoked, err := svc.IsSessionRevoked(ctx, id)
	if err != nil {
		t.Fatalf("IsSessionRevoked error: %v", err)
	}
	if revoked {
		t.Fatalf("expected no revocation entry for ttl 0")
	}
}
