// Package history persists terminal task records and workflow results to
// Redis so they survive registry purges and process restarts. The core
// engine never reads from history; it is a write-mostly audit surface
// queried by operators
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/siderealworks/meridian/internal/config"
	"github.com/siderealworks/meridian/pkg/api"
)

// RedisStore records terminal task and workflow state under a key prefix,
// with bounded recency lists for browsing
type RedisStore struct {
	client  *redis.Client
	prefix  string
	maxList int64
}

var ErrNotFound = errors.New("no history record")

// New creates a history store from the given configuration
func New(cfg config.HistoryConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{
		client:  client,
		prefix:  cfg.Prefix,
		maxList: cfg.MaxList,
	}
}

// RecordTask stores a terminal task record and pushes its ID onto the
// recency list
func (s *RedisStore) RecordTask(
	ctx context.Context, rec *api.TaskRecord,
) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.taskKey(rec.ID), data, 0)
	pipe.LPush(ctx, s.key("tasks"), string(rec.ID))
	pipe.LTrim(ctx, s.key("tasks"), 0, s.maxList-1)
	_, err = pipe.Exec(ctx)
	return err
}

// GetTask retrieves a recorded task by ID
func (s *RedisStore) GetTask(
	ctx context.Context, id api.TaskID,
) (*api.TaskRecord, error) {
	data, err := s.client.Get(ctx, s.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var rec api.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentTaskIDs returns recorded task IDs, most recent first
func (s *RedisStore) RecentTaskIDs(
	ctx context.Context, count int64,
) ([]api.TaskID, error) {
	vals, err := s.client.LRange(ctx, s.key("tasks"), 0, count-1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.TaskID, len(vals))
	for i, v := range vals {
		res[i] = api.TaskID(v)
	}
	return res, nil
}

// RecordResult stores the latest terminal result for a workflow name and
// pushes the name onto the recency list
func (s *RedisStore) RecordResult(
	ctx context.Context, res *api.WorkflowResult,
) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.resultKey(res.Name), data, 0)
	pipe.LPush(ctx, s.key("results"), string(res.Name))
	pipe.LTrim(ctx, s.key("results"), 0, s.maxList-1)
	_, err = pipe.Exec(ctx)
	return err
}

// GetResult retrieves the last recorded result for a workflow name
func (s *RedisStore) GetResult(
	ctx context.Context, name api.Name,
) (*api.WorkflowResult, error) {
	data, err := s.client.Get(ctx, s.resultKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	var res api.WorkflowResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Close releases the underlying Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(kind string) string {
	return fmt.Sprintf("%s:%s", s.prefix, kind)
}

func (s *RedisStore) taskKey(id api.TaskID) string {
	return fmt.Sprintf("%s:task:%s", s.prefix, id)
}

func (s *RedisStore) resultKey(name api.Name) string {
	return fmt.Sprintf("%s:result:%s", s.prefix, name)
}
