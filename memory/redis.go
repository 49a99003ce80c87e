package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auticare/types"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores the memory snapshot of one bot under a single key.
type RedisPersister struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisPersister(client *redis.Client, bot string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{
		client: client,
		key:    "auticare:memory:" + bot,
		ttl:    ttl,
	}
}

func (p *RedisPersister) Save(ctx context.Context, turns []types.Turn) error {
	if len(turns) == 0 {
		return p.client.Del(ctx, p.key).Err()
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	return p.client.Set(ctx, p.key, data, p.ttl).Err()
}

func (p *RedisPersister) Load(ctx context.Context) ([]types.Turn, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var turns []types.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("unmarshal turns: %w", err)
	}
	return turns, nil
}
