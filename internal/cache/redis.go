// Package cache holds the storage layers around flag definitions: the Redis
// store that a provider reads published definition sets from, and the
// in-memory L1 cache of evaluation results.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultDefinitionsKey is where a definition set is published when no key is configured.
const DefaultDefinitionsKey = "slipup:flags:definitions"

var (
	// ErrNotFound is returned when no definition set has been published.
	ErrNotFound = errors.New("definition set not found")

	// ErrCorruptEntry is returned when the stored value lacks the version prefix.
	ErrCorruptEntry = errors.New("corrupt definition entry")
)

// SetResult reports what PutDefinitions did.
type SetResult int

const (
	// SetResultSkipped means the stored version is newer or equal.
	SetResultSkipped SetResult = 0
	// SetResultUpdated means the new value was written.
	SetResultUpdated SetResult = 1
	// SetResultRepaired means a corrupt entry was overwritten.
	SetResultRepaired SetResult = 2
)

func (r SetResult) String() string {
	switch r {
	case SetResultSkipped:
		return "skipped"
	case SetResultUpdated:
		return "updated"
	case SetResultRepaired:
		return "repaired"
	default:
		return "unknown"
	}
}

// versionedSet writes ARGV[2] only when ARGV[1] is newer than the stored
// version. Entries without a parsable "version|" prefix are overwritten.
var versionedSet = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local sep = string.find(current, '|', 1, true)
  local stored = nil
  if sep then
    stored = tonumber(string.sub(current, 1, sep - 1))
  end
  if stored == nil then
    redis.call('SET', KEYS[1], ARGV[2])
    return 2
  end
  if stored >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// Store defines the definition storage operations.
// This interface allows for dependency injection and mocking in tests.
type Store interface {
	// GetDefinitions returns the published version and raw JSON payload.
	GetDefinitions(ctx context.Context) (int64, []byte, error)

	// PutDefinitions publishes a payload if version is newer than the stored one.
	PutDefinitions(ctx context.Context, version int64, payload []byte) (SetResult, error)

	// Close terminates the connection.
	Close() error
}

// RedisStore keeps one encoded definition set under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client. An empty key selects DefaultDefinitionsKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultDefinitionsKey
	}
	return &RedisStore{client: client, key: key}
}

// Key returns the Redis key the store reads and writes.
func (s *RedisStore) Key() string {
	return s.key
}

// Client exposes the underlying connection for pool monitoring.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// GetDefinitions reads and decodes the stored entry.
func (s *RedisStore) GetDefinitions(ctx context.Context) (int64, []byte, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read definitions from %q: %w", s.key, err)
	}

	version, payload, ok := decodeEntry(raw)
	if !ok {
		return 0, nil, fmt.Errorf("%w: key %q", ErrCorruptEntry, s.key)
	}
	return version, []byte(payload), nil
}

// PutDefinitions stores payload as "version|json" unless a newer version is already present.
func (s *RedisStore) PutDefinitions(ctx context.Context, version int64, payload []byte) (SetResult, error) {
	res, err := versionedSet.Run(ctx, s.client, []string{s.key}, version, encodeEntry(payload, version)).Int()
	if err != nil {
		return SetResultSkipped, fmt.Errorf("failed to publish definitions to %q: %w", s.key, err)
	}
	return SetResult(res), nil
}

// Name returns the component name.
func (s *RedisStore) Name() string {
	return "redis"
}

// Check verifies the Redis connection using Ping.
func (s *RedisStore) Check(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// maxVersionPrefix is the longest "version|" prefix: 19 digits of int64 plus the separator.
const maxVersionPrefix = 20

func encodeEntry(payload []byte, version int64) string {
	var b strings.Builder
	b.Grow(len(payload) + maxVersionPrefix)
	b.WriteString(strconv.FormatInt(version, 10))
	b.WriteByte('|')
	b.Write(payload)
	return b.String()
}

// decodeEntry splits "version|json". The separator is only searched for
// within the prefix so pipes inside the payload are left alone.
func decodeEntry(raw string) (int64, string, bool) {
	limit := min(len(raw), maxVersionPrefix+1)
	sep := strings.IndexByte(raw[:limit], '|')
	if sep < 0 {
		return 0, "", false
	}
	version, err := strconv.ParseInt(raw[:sep], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return version, raw[sep+1:], true
}
