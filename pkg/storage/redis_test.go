//go:build integration

package storage

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/HatiCode/romcv/pkg/compress"
)

// setupRedisContainer starts a Redis container and returns its host:port.
func setupRedisContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

func newRedisStore(t *testing.T, addr string, typ compress.Type) *RedisStore {
	t.Helper()
	codec, err := compress.CreateCodec(typ)
	if err != nil {
		t.Fatalf("CreateCodec() error = %v", err)
	}
	store, err := NewRedisStore(RedisOptions{Addr: addr, TTL: time.Minute, Codec: codec})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore_NewRedisStore_Validation(t *testing.T) {
	if _, err := NewRedisStore(RedisOptions{}); err == nil || err.Error() != "redis address cannot be empty" {
		t.Errorf("empty address: err = %v", err)
	}
	if _, err := NewRedisStore(RedisOptions{Addr: "localhost:6379", DB: -1}); err == nil || err.Error() != "redis database number must be >= 0" {
		t.Errorf("negative db: err = %v", err)
	}
	if _, err := NewRedisStore(RedisOptions{Addr: "invalid:99999"}); err == nil {
		t.Error("expected error for unreachable address")
	}
}

func TestRedisStore_PutGetLatest_AllCodecs(t *testing.T) {
	addr := setupRedisContainer(t)
	ctx := context.Background()

	for _, typ := range []compress.Type{compress.None, compress.Zstd, compress.S2, compress.LZ4} {
		t.Run(string(typ), func(t *testing.T) {
			store := newRedisStore(t, addr, typ)

			s := sampleSnapshot("Kriging")
			s.RunID = "run-" + string(typ)
			s.Outputs = append(s.Outputs, OutputSummary{
				Name:                     "flux",
				MeanRelativeErrorPercent: Number(math.NaN()),
				MeanSquaredError:         4,
			})

			if err := store.Put(ctx, s); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, found, err := store.GetLatest(ctx, "Kriging")
			if err != nil || !found {
				t.Fatalf("GetLatest() = found %v, err %v", found, err)
			}
			if got.RunID != s.RunID {
				t.Errorf("RunID = %q, want %q", got.RunID, s.RunID)
			}
			if len(got.Outputs) != 2 || !math.IsNaN(float64(got.Outputs[1].MeanRelativeErrorPercent)) {
				t.Errorf("Outputs = %+v", got.Outputs)
			}
			if !got.GeneratedAt.Equal(s.GeneratedAt.Round(0)) {
				t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, s.GeneratedAt)
			}
		})
	}
}

func TestRedisStore_ReadsOtherCodecs(t *testing.T) {
	addr := setupRedisContainer(t)
	ctx := context.Background()

	writer := newRedisStore(t, addr, compress.Zstd)
	reader := newRedisStore(t, addr, compress.LZ4)

	if err := writer.Put(ctx, sampleSnapshot("SVM")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, found, err := reader.GetLatest(ctx, "SVM")
	if err != nil || !found {
		t.Fatalf("GetLatest() = found %v, err %v", found, err)
	}
	if got.Method != "SVM" {
		t.Errorf("Method = %q, want SVM", got.Method)
	}
}

func TestRedisStore_GetLatest_NotFound(t *testing.T) {
	addr := setupRedisContainer(t)
	store := newRedisStore(t, addr, compress.None)

	_, found, err := store.GetLatest(context.Background(), "MARS")
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if found {
		t.Error("found = true for a method with no report")
	}
}

func TestRedisStore_TTL(t *testing.T) {
	addr := setupRedisContainer(t)
	store := newRedisStore(t, addr, compress.S2)
	ctx := context.Background()

	if err := store.Put(ctx, sampleSnapshot("ANN")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	ttl, err := store.client.TTL(ctx, Key("ANN")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisStore_InvalidMethod(t *testing.T) {
	addr := setupRedisContainer(t)
	store := newRedisStore(t, addr, compress.None)

	if err := store.Put(context.Background(), sampleSnapshot("bad:name")); err == nil {
		t.Error("Put() expected error for invalid method name")
	}
}

func TestRedisStore_CloseIdempotent(t *testing.T) {
	addr := setupRedisContainer(t)
	store := newRedisStore(t, addr, compress.None)

	if err := store.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
