package state

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"go.corp.example.com/shuttlegateway/internal/config"
)

const shuttleStateKeyPrefix = "shuttle_state:"

func shuttleStateKey(shuttleID string) string {
	return shuttleStateKeyPrefix + shuttleID
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host       string
	Port       int
	Password   string
	DB         int
	TLSEnabled bool
}

// RedisFlagPointers holds pointers to flag values for Redis configuration.
type RedisFlagPointers struct {
	host       *string
	port       *int
	password   *string
	db         *int
	tlsEnabled *bool
}

// RegisterRedisFlags registers Redis-related command-line flags. Convert to
// RedisConfig with ToRedisConfig after flag.Parse().
func RegisterRedisFlags() *RedisFlagPointers {
	return &RedisFlagPointers{
		host: flag.String("redis-host",
			config.GetEnv("GATEWAY_REDIS_HOST", "localhost"),
			"Redis host"),
		port: flag.Int("redis-port",
			config.GetEnvInt("GATEWAY_REDIS_PORT", 6379),
			"Redis port"),
		password: flag.String("redis-password",
			config.GetEnvOrConfig("GATEWAY_REDIS_PASSWORD", "redis_password", ""),
			"Redis password"),
		db: flag.Int("redis-db-number",
			config.GetEnvInt("GATEWAY_REDIS_DB_NUMBER", 0),
			"Redis database number to connect to"),
		tlsEnabled: flag.Bool("redis-tls-enable",
			config.GetEnvBool("GATEWAY_REDIS_TLS_ENABLE", false),
			"Enable TLS for the Redis connection"),
	}
}

// ToRedisConfig converts flag pointers to RedisConfig. Call after flag.Parse().
func (r *RedisFlagPointers) ToRedisConfig() RedisConfig {
	return RedisConfig{
		Host:       *r.host,
		Port:       *r.port,
		Password:   *r.password,
		DB:         *r.db,
		TLSEnabled: *r.tlsEnabled,
	}
}

// casScript implements the optimistic compare-and-set spec §4.1 requires:
// the caller supplies the version it last read (0 if the key didn't exist
// for it), and the write only lands if the stored version still matches.
// Returns 1 on success, 0 on conflict. Running the whole check-and-set as a
// single EVAL gives us the same atomicity as WATCH/MULTI without a
// client-side transaction loop.
const casScript = `
local current = redis.call("GET", KEYS[1])
local currentVersion = 0
if current then
  local decoded = cjson.decode(current)
  currentVersion = decoded.version
end
if currentVersion ~= tonumber(ARGV[2]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`

// RedisStore is a Store backed by Redis, exercising go-redis's Lua EVAL
// support for the CAS write and SCAN for AllStates.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	script *redis.Script
}

// NewRedisStore dials Redis and verifies connectivity with a bounded ping,
// matching the teacher's redis client's connect-then-ping discipline.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logger.Info("redis state store connected",
		slog.String("address", options.Addr),
		slog.Int("db", cfg.DB))

	return &RedisStore{
		client: client,
		logger: logger,
		script: redis.NewScript(casScript),
	}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, shuttleID string) (ShuttleState, error) {
	raw, err := s.client.Get(ctx, shuttleStateKey(shuttleID)).Result()
	if errors.Is(err, redis.Nil) {
		return ShuttleState{}, ErrUnknownShuttle
	}
	if err != nil {
		return ShuttleState{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var rec ShuttleState
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ShuttleState{}, fmt.Errorf("%w: decode %s: %v", ErrStoreUnavailable, shuttleID, err)
	}
	return rec, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, shuttleID string) (ShuttleState, error) {
	return s.get(ctx, shuttleID)
}

// Update implements Store, retrying the read-mutate-write cycle whenever the
// CAS script reports a version conflict.
func (s *RedisStore) Update(ctx context.Context, shuttleID string, mutate Mutator) (ShuttleState, error) {
	const maxAttempts = 50
	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := s.get(ctx, shuttleID)
		if err != nil {
			return ShuttleState{}, err
		}

		updated := mutate(current.Clone())
		updated.ShuttleID = shuttleID
		updated.LastSeen = nowUnix()
		updated.Version = current.Version + 1

		encoded, err := json.Marshal(updated)
		if err != nil {
			return ShuttleState{}, fmt.Errorf("encode state for %s: %w", shuttleID, err)
		}

		result, err := s.script.Run(ctx, s.client,
			[]string{shuttleStateKey(shuttleID)}, string(encoded), current.Version).Int()
		if err != nil {
			return ShuttleState{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if result == 1 {
			return updated, nil
		}
		s.logger.Debug("state CAS conflict, retrying", slog.String("shuttle", shuttleID))
	}
	return ShuttleState{}, fmt.Errorf("state: update %s: %w after %d attempts", shuttleID, ErrCASConflict, maxAttempts)
}

// AllStates implements Store.
func (s *RedisStore) AllStates(ctx context.Context) (map[string]ShuttleState, error) {
	out := make(map[string]ShuttleState)
	iter := s.client.Scan(ctx, 0, shuttleStateKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var rec ShuttleState
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Error("failed to decode shuttle state", slog.String("key", key), slog.Any("error", err))
			continue
		}
		out[rec.ShuttleID] = rec
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// InitIfAbsent implements Store.
func (s *RedisStore) InitIfAbsent(ctx context.Context, shuttleID string) error {
	key := shuttleStateKey(shuttleID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists > 0 {
		return nil
	}

	initial := ShuttleState{
		ShuttleID: shuttleID,
		Status:    StatusUnknown,
		LastSeen:  nowUnix(),
		Version:   1,
	}
	encoded, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("encode initial state for %s: %w", shuttleID, err)
	}
	if err := s.client.SetNX(ctx, key, string(encoded), 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
