// Package sink publishes the latest state of queried servers to Redis.
package sink

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gamequery/internal/config"
	"github.com/woozymasta/gamequery/internal/engine"
)

const pingTimeout = 5 * time.Second

// Publisher writes one hash per server, expiring after the configured TTL,
// and indexes servers per game in a sorted set scored by query time.
// A nil Publisher is valid and publishes nothing.
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(cfg config.Redis) (*Publisher, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis publisher connected")

	return &Publisher{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}

	return p.client.Close()
}

// Publish stores res as the current state of its server.
func (p *Publisher) Publish(ctx context.Context, res *engine.Result) error {
	if p == nil || res == nil {
		return nil
	}

	key := ServerKey(p.prefix, res.Game, res.Address)
	set := GameKey(p.prefix, res.Game)

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, Fields(res))
	if p.ttl > 0 {
		pipe.Expire(ctx, key, p.ttl)
	}
	pipe.ZAdd(ctx, set, redis.Z{Score: float64(res.QueriedAt.Unix()), Member: res.Address})
	if p.ttl > 0 {
		pipe.ZRemRangeByScore(ctx, set, "-inf", strconv.FormatInt(res.QueriedAt.Add(-p.ttl).Unix(), 10))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}

	log.Trace().Str("key", key).Msg("Server state published")
	return nil
}

// ServerKey is the hash key of one server.
func ServerKey(prefix, game, address string) string {
	return prefix + ":server:" + game + ":" + address
}

// GameKey is the sorted set of recently queried servers of a game.
func GameKey(prefix, game string) string {
	return prefix + ":game:" + game
}

// Fields flattens a result into hash fields.
func Fields(res *engine.Result) map[string]any {
	c := res.Common

	return map[string]any{
		"game":            res.Game,
		"address":         res.Address,
		"country":         res.Country,
		"name":            c.Name,
		"map":             c.Map,
		"game_mode":       c.GameMode,
		"game_version":    c.Version,
		"players_online":  c.PlayersOnline,
		"players_maximum": c.PlayersMaximum,
		"has_password":    boolField(c.HasPassword),
		"ping_ms":         c.Ping.Milliseconds(),
		"queried_at":      res.QueriedAt.UTC().Format(time.RFC3339),
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
