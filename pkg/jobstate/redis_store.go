package jobstate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tablexfer:job:"

// RedisStore keeps jobs in redis with a per-entry expiry, which lets several
// server instances behind a load balancer answer for the same transfer.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}

	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient connects to the redis server at addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	b, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrJobNotFound
	case err != nil:
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *RedisStore) Put(ctx context.Context, job *Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, redisKeyPrefix+job.ID, b, s.ttl).Err()
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]*Job, error) {
	var jobs []*Job

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		job, err := s.Get(ctx, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
		switch {
		case errors.Is(err, ErrJobNotFound):
			// expired between scan and get
			continue
		case err != nil:
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, iter.Err()
}
