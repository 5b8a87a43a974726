package client

import (
	"context"
	"testing"

	"backoffice_portal_backend/internal/location/transport"
	"backoffice_portal_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisPair(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheMemoryTier(t *testing.T) {
	cache := NewCache(testProviderConfig{}, nil, logger.New("development"))
	ctx := context.Background()

	address := transport.AddressComponents{FormattedAddress: "Jalan Sudirman", City: "Jakarta"}
	cache.Set(ctx, "loc:rev:x", address)

	var got transport.AddressComponents
	if !cache.Get(ctx, "loc:rev:x", &got) {
		t.Fatal("expected memory hit")
	}
	if got != address {
		t.Fatalf("got %+v", got)
	}

	if cache.Get(ctx, "loc:rev:missing", &got) {
		t.Fatal("unexpected hit on missing key")
	}
}

func TestCacheRedisTierSharedAcrossInstances(t *testing.T) {
	_, rdb := newRedisPair(t)
	ctx := context.Background()

	writer := NewCache(testProviderConfig{}, rdb, logger.New("development"))
	reader := NewCache(testProviderConfig{}, rdb, logger.New("development"))

	address := transport.AddressComponents{FormattedAddress: "Jalan Thamrin", City: "Jakarta"}
	writer.Set(ctx, "loc:rev:shared", address)

	// The reader has a cold memory tier; the value must come from Redis and
	// be promoted.
	var got transport.AddressComponents
	if !reader.Get(ctx, "loc:rev:shared", &got) {
		t.Fatal("expected redis hit")
	}
	if got != address {
		t.Fatalf("got %+v", got)
	}

	if raw, found := reader.mem.Get("loc:rev:shared"); !found || raw == nil {
		t.Fatal("redis hit must promote into the memory tier")
	}
}

func TestCacheCorruptRedisEntryIsMiss(t *testing.T) {
	mr, rdb := newRedisPair(t)
	ctx := context.Background()

	cache := NewCache(testProviderConfig{}, rdb, logger.New("development"))
	mr.Set("loc:rev:corrupt", "{not-json")

	var got transport.AddressComponents
	if cache.Get(ctx, "loc:rev:corrupt", &got) {
		t.Fatal("corrupt entry must behave as a miss, not an error")
	}
}

func TestCacheFlushClearsMemoryTier(t *testing.T) {
	cache := NewCache(testProviderConfig{}, nil, logger.New("development"))
	ctx := context.Background()

	cache.Set(ctx, "loc:postal:country:ID", []transport.PostalCodeOption{{PostalCode: "10220"}})
	cache.Flush()

	var got []transport.PostalCodeOption
	if cache.Get(ctx, "loc:postal:country:ID", &got) {
		t.Fatal("flush must clear the memory tier")
	}
}
