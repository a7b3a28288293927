package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kareemsasa3/rinkcal/internal/config"
)

const (
	jobKeyPrefix = "rinkcal:job:"
	jobIndexKey  = "rinkcal:jobs"
)

// RedisStorage stores jobs as JSON strings that expire after the job TTL.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage connects and pings Redis.
func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.JobTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStorage{client: client, ttl: ttl}, nil
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *RedisStorage) SaveJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), data, s.ttl)
	pipe.SAdd(ctx, jobIndexKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStorage) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// UpdateJob overwrites an existing job, keeping its expiry.
func (s *RedisStorage) UpdateJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetXX(ctx, jobKey(job.ID), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if !ok {
		return ErrJobNotFound
	}
	return nil
}

// ListJobs returns live job IDs, pruning index entries whose job expired.
func (s *RedisStorage) ListJobs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	live := ids[:0]
	for _, id := range ids {
		n, err := s.client.Exists(ctx, jobKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		if n == 0 {
			s.client.SRem(ctx, jobIndexKey, id)
			continue
		}
		live = append(live, id)
	}
	sort.Strings(live)
	return live, nil
}

func (s *RedisStorage) GetJobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	ids, err := s.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Job
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *RedisStorage) DeleteJob(ctx context.Context, jobID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jobID))
	pipe.SRem(ctx, jobIndexKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStorage) Close() error { return s.client.Close() }

var (
	_ Storage = (*RedisStorage)(nil)
	_ Storage = (*InMemoryStorage)(nil)
)
