package redis

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/parley/state/statetest"
)

// Set PARLEY_TEST_REDIS_ADDR (for example localhost:6379) to run these
// tests against a live server. Keys are removed afterwards.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("PARLEY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PARLEY_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, keyPrefix+t.Name()+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})
	s := New(client)
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	return s
}

func TestConformance(t *testing.T) {
	statetest.Run(t, newTestStore(t))
}

func TestNamespaceKey(t *testing.T) {
	if got := nsKey("telegram.assets.photo"); got != "parley:state:telegram.assets.photo" {
		t.Fatalf("nsKey = %q", got)
	}
}
