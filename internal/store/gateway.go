package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Hash keys. Each concept lives in its own hash, keyed by normalized email or fund id.
const (
	userNameKey      = "user_name"
	userFundIDsKey   = "user_fund_ids"
	fundManagerKey   = "fund_manager_email"
	fundInvestorsKey = "fund_investor_emails"
	fundPortfolioKey = "fund_portfolio"
)

var (
	// ErrNotFound indicates that the requested field is not present in the store.
	ErrNotFound = errors.New("not found in store")
	// ErrUnavailable indicates that the store could not be reached or never became ready.
	ErrUnavailable = errors.New("store unavailable")
)

// Options configures the connection to Redis.
type Options struct {
	Addr     string
	Password string
	DB       int
	// ReadyTimeout bounds how long Connect waits for Redis to finish loading its dataset.
	ReadyTimeout time.Duration
	// ReadyInterval is the pause between readiness pings.
	ReadyInterval time.Duration
}

// Gateway reads and writes fund and user fields in Redis.
type Gateway struct {
	client *redis.Client
}

// NewGateway wraps an existing client.
func NewGateway(client *redis.Client) *Gateway {
	return &Gateway{client: client}
}

// Connect creates a Redis client and waits until the server accepts commands.
// While Redis reports that it is still loading its dataset, Connect keeps pinging
// until opts.ReadyTimeout elapses.
func Connect(ctx context.Context, opts Options) (*Gateway, error) {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 60 * time.Second
	}
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = 500 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitReady(ctx, ping, opts.ReadyTimeout, opts.ReadyInterval); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return NewGateway(client), nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.client.Close()
}

func waitReady(ctx context.Context, ping func(context.Context) error, timeout, interval time.Duration) error {
	start := time.Now()
	for {
		err := ping(ctx)
		if err == nil {
			return nil
		}
		if !isLoading(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if time.Since(start) >= timeout {
			slog.Warn("redis still loading dataset, giving up", "waited", time.Since(start).Round(time.Millisecond))
			return fmt.Errorf("%w: still loading dataset after %s", ErrUnavailable, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// isLoading reports whether err is Redis' reply while it loads the dataset from disk.
func isLoading(err error) bool {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return strings.HasPrefix(redisErr.Error(), "LOADING")
	}
	return false
}

func (g *Gateway) hget(ctx context.Context, key, field string) (string, error) {
	v, err := g.client.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading %s[%s]: %w", key, field, err)
	}
	return v, nil
}

func (g *Gateway) hgetList(ctx context.Context, key, field string) ([]string, error) {
	raw, err := g.hget(ctx, key, field)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	list, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s[%s]: %w", key, field, err)
	}
	return list, nil
}
