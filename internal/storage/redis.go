package storage

import (
	"context"
	"encoding/json"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ storage.Store = (*RedisStore)(nil)

// RedisStore keeps each workflow snapshot as a JSON string under
// <prefix><id> and tracks known IDs in the set <prefix>ids.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisClient builds a client from a redis:// URL when one is given,
// otherwise from addr, password and db.
func NewRedisClient(url, addr, password string, db int) (*redis.Client, error) {
	if url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, errors.Wrap(err, "storage/redis: parse url")
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

// NewRedisStore wraps client. The store owns the client and closes it on Close.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) idsKey() string {
	return s.prefix + "ids"
}

func (s *RedisStore) SaveWorkflow(ctx context.Context, w models.Workflow) error {
	if w.ID == "" {
		return errors.New("storage/redis: workflow ID is required")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return errors.Wrap(err, "storage/redis: encode workflow")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(w.ID), data, 0)
		pipe.SAdd(ctx, s.idsKey(), w.ID)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "storage/redis: save workflow %s", w.ID)
	}
	return nil
}

func (s *RedisStore) GetWorkflow(ctx context.Context, id string) (models.Workflow, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, errors.Wrapf(err, "storage/redis: get workflow %s", id)
	}
	var wf models.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return models.Workflow{}, errors.Wrapf(err, "storage/redis: decode workflow %s", id)
	}
	return wf, nil
}

func (s *RedisStore) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "storage/redis: list workflow ids")
	}
	workflows := []models.Workflow{}
	if len(ids) == 0 {
		return workflows, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "storage/redis: load workflows")
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// id left behind by an interrupted delete
			continue
		}
		var wf models.Workflow
		if err := json.Unmarshal([]byte(raw), &wf); err != nil {
			return nil, errors.Wrapf(err, "storage/redis: decode workflow %s", ids[i])
		}
		workflows = append(workflows, wf)
	}
	storage.SortNewestFirst(workflows)
	return workflows, nil
}

func (s *RedisStore) DeleteWorkflow(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.idsKey(), id)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "storage/redis: delete workflow %s", id)
	}
	if del.Val() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "storage/redis: ping")
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
