// Package redisdb keeps users in Redis: one JSON value per user plus a
// username -> id hash that enforces uniqueness.
package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/user"
)

const (
	defaultKeyPrefix = "journal:"
	maxTxRetries     = 10
)

var errTooManyRetries = errors.New("redis transaction retries exhausted")

type RedisDB struct {
	rdb       *redis.Client
	keyPrefix string
}

type Option func(*RedisDB)

func WithKeyPrefix(prefix string) Option {
	return func(r *RedisDB) {
		r.keyPrefix = prefix
	}
}

// New creates and pings a Redis client.
func New(ctx context.Context, addr, password string, opts ...Option) (*RedisDB, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	result := &RedisDB{
		rdb:       rdb,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(result)
	}

	return result, nil
}

func (r *RedisDB) usernamesKey() string {
	return r.keyPrefix + "usernames"
}

func (r *RedisDB) userKey(id string) string {
	return r.keyPrefix + "user:" + id
}

func (r *RedisDB) GetAllUsers(ctx context.Context) ([]*user.User, error) {
	ids, err := r.rdb.HVals(ctx, r.usernamesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list user ids: %w", err)
	}

	result := []*user.User{}
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.userKey(id))
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load users: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// removed between HVALS and MGET
			continue
		}
		usr, err := decodeUser([]byte(raw))
		if err != nil {
			return nil, err
		}
		result = append(result, usr)
	}

	return result, nil
}

func (r *RedisDB) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	id, err := r.rdb.HGet(ctx, r.usernamesKey(), username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lookup username: %w", err)
	}

	raw, err := r.rdb.Get(ctx, r.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis load user: %w", err)
	}

	return decodeUser(raw)
}

func (r *RedisDB) SaveUser(ctx context.Context, usr *user.User) error {
	doc := usr.Clone()
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	usernamesKey := r.usernamesKey()
	userKey := r.userKey(doc.ID)

	txf := func(tx *redis.Tx) error {
		ownerID, err := tx.HGet(ctx, usernamesKey, doc.Username).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis lookup username: %w", err)
		case ownerID != doc.ID:
			return fmt.Errorf("%w: %s", models.ErrUsernameTaken, doc.Username)
		}

		previousUsername := ""
		raw, err := tx.Get(ctx, userKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis load user: %w", err)
		default:
			previous, err := decodeUser(raw)
			if err != nil {
				return err
			}
			previousUsername = previous.Username
			doc.CreatedAt = previous.CreatedAt
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previousUsername != "" && previousUsername != doc.Username {
				pipe.HDel(ctx, usernamesKey, previousUsername)
			}
			pipe.Set(ctx, userKey, data, 0)
			pipe.HSet(ctx, usernamesKey, doc.Username, doc.ID)
			return nil
		})

		return err
	}

	if err := r.watch(ctx, txf, usernamesKey, userKey); err != nil {
		return err
	}

	usr.ID = doc.ID
	usr.CreatedAt = doc.CreatedAt
	usr.UpdatedAt = doc.UpdatedAt

	return nil
}

func (r *RedisDB) DeleteUserByUsername(ctx context.Context, username string) error {
	usernamesKey := r.usernamesKey()

	txf := func(tx *redis.Tx) error {
		id, err := tx.HGet(ctx, usernamesKey, username).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("redis lookup username: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.userKey(id))
			pipe.HDel(ctx, usernamesKey, username)
			return nil
		})

		return err
	}

	return r.watch(ctx, txf, usernamesKey)
}

func (r *RedisDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	count, err := r.rdb.HLen(ctx, r.usernamesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis count users: %w", err)
	}

	return count, nil
}

func (r *RedisDB) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisDB) Close() error {
	return r.rdb.Close()
}

func (r *RedisDB) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return errTooManyRetries
}

func decodeUser(raw []byte) (*user.User, error) {
	var usr user.User
	if err := json.Unmarshal(raw, &usr); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &usr, nil
}
