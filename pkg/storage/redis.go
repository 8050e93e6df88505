// Package storage publishes cross-validation report snapshots.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HatiCode/romcv/pkg/compress"
)

// KeyPrefix prefixes every report key written to Redis.
const KeyPrefix = "romcv:report:"

// ErrClosed is returned by a RedisStore used after Close.
var ErrClosed = errors.New("redis store is closed")

// DefaultTTL is how long a report stays in Redis when no TTL is given.
const DefaultTTL = 7 * 24 * time.Hour

// codec tags of the stored envelope; the first byte of every value.
var codecTags = map[compress.Type]byte{
	compress.None: 0,
	compress.Zstd: 1,
	compress.S2:   2,
	compress.LZ4:  3,
}

// RedisStore keeps report snapshots in Redis so several runs, and the
// processes serving their reports, can share them.
//
// Values are JSON payloads compressed with the configured codec and prefixed
// with a one-byte codec tag. Readers decode by tag, so stores configured with
// different codecs can read each other's reports.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	codec  compress.Codec
	mu     sync.RWMutex
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// TTL of stored reports. Zero uses DefaultTTL.
	TTL time.Duration

	// Codec compresses stored payloads. Nil stores them uncompressed.
	Codec compress.Codec
}

// NewRedisStore connects to Redis and returns a store. It fails if the server
// does not answer a ping within five seconds.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if opts.DB < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Codec == nil {
		opts.Codec = compress.NoOp{}
	}
	if _, ok := codecTags[opts.Codec.Type()]; !ok {
		return nil, fmt.Errorf("unsupported codec %q", opts.Codec.Type())
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &RedisStore{
		client: client,
		ttl:    opts.TTL,
		codec:  opts.Codec,
	}, nil
}

// Key returns the Redis key of method's report.
func Key(method string) string { return KeyPrefix + method }

// Put stores s under its method with the store's TTL.
func (r *RedisStore) Put(ctx context.Context, s Snapshot) error {
	if err := validMethod(s.Method); err != nil {
		return err
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	value, err := encodeEnvelope(r.codec, payload)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return ErrClosed
	}
	if err := r.client.Set(ctx, Key(s.Method), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot in redis: %w", err)
	}
	return nil
}

// GetLatest returns the report of method. A missing key is not an error.
func (r *RedisStore) GetLatest(ctx context.Context, method string) (Snapshot, bool, error) {
	if err := validMethod(method); err != nil {
		return Snapshot{}, false, err
	}

	value, err := r.get(ctx, Key(method))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	payload, err := decodeEnvelope(value)
	if err != nil {
		return Snapshot{}, false, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snapshot, true, nil
}

// Close closes the Redis client. It is safe to call more than once.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return ErrClosed
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return nil, ErrClosed
	}
	return r.client.Get(ctx, key).Bytes()
}

func validMethod(method string) error {
	if method == "" {
		return errors.New("method name required")
	}
	for _, c := range method {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("invalid method name %q: only alphanumeric, hyphens, and underscores allowed", method)
		}
	}
	return nil
}

func encodeEnvelope(c compress.Codec, payload []byte) ([]byte, error) {
	compressed, err := c.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	out := make([]byte, 0, len(compressed)+1)
	out = append(out, codecTags[c.Type()])
	return append(out, compressed...), nil
}

func decodeEnvelope(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, errors.New("empty snapshot value")
	}
	for typ, tag := range codecTags {
		if tag != value[0] {
			continue
		}
		c, err := compress.CreateCodec(typ)
		if err != nil {
			return nil, err
		}
		payload, err := c.Decompress(value[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("unknown snapshot codec tag %d", value[0])
}
