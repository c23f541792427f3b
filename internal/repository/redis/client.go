package redis

import (
	"github.com/go-redis/redis/v8"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps redis.Client.
type Client struct {
	*redis.Client
}

// NewClient creates a Redis client. It does not dial until first use.
func NewClient(opts Options) *Client {
	return &Client{
		Client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}
