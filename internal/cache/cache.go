// cache содержит необязательный Redis-кэш записей refresh-токенов.
//
// Кэш — только ускоритель чтения: все мутации защищены предикатами SQL
// в хранилище, поэтому устаревшая запись кэша не может нарушить инвариант
// «не более одной активной записи в линии». При расхождении движок ротации
// перечитывает запись из БД.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Entry — снимок записи refresh-токена, который мы храним в Redis по jti.
type Entry struct {
	AccountID uuid.UUID
	Family    string
	Revoked   bool
	RevokedAt time.Time // нулевое значение — запись не отозвана.
	ExpiresAt time.Time
}

// TokenCache — минимальный контракт кэша записей refresh-токенов.
type TokenCache interface {
	// Get возвращает снимок и признак его наличия в кэше.
	Get(ctx context.Context, jti uuid.UUID) (*Entry, bool, error)
	// Set сохраняет снимок с TTL (обычно ExpiresAt-now).
	Set(ctx context.Context, jti uuid.UUID, e *Entry, ttl time.Duration) error
	// MarkRevoked помечает снимок отозванным моментом revokedAt,
	// сохраняя остаточный TTL ключа.
	MarkRevoked(ctx context.Context, jti uuid.UUID, revokedAt time.Time) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "sessions:rt:".
func NewRedisCache(redisURL, prefix string) (TokenCache, error) {
	if prefix == "" {
		prefix = "sessions:rt:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(jti uuid.UUID) string { return c.prefix + jti.String() }

// Храним как Redis Hash с полями: acc, fam, rev (0/1), rat (unix, 0 если нет), exp (unix).
func (c *redisCache) Get(ctx context.Context, jti uuid.UUID) (*Entry, bool, error) {
	m, err := c.rdb.HGetAll(ctx, c.key(jti)).Result()
	if err != nil {
		return nil, false, err
	}

	if len(m) == 0 {
		return nil, false, nil
	}

	accountID, err := uuid.Parse(m["acc"])
	if err != nil {
		return nil, false, err
	}

	expUnix, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, false, err
	}

	e := &Entry{
		AccountID: accountID,
		Family:    m["fam"],
		Revoked:   m["rev"] == "1",
		ExpiresAt: time.Unix(expUnix, 0).UTC(),
	}

	if ratUnix, err := strconv.ParseInt(m["rat"], 10, 64); err == nil && ratUnix > 0 {
		e.RevokedAt = time.Unix(ratUnix, 0).UTC()
	}

	return e, true, nil
}

func (c *redisCache) Set(ctx context.Context, jti uuid.UUID, e *Entry, ttl time.Duration) error {
	rat := int64(0)
	if !e.RevokedAt.IsZero() {
		rat = e.RevokedAt.Unix()
	}

	kv := map[string]string{
		"acc": e.AccountID.String(),
		"fam": e.Family,
		"rev": boolTo01(e.Revoked),
		"rat": strconv.FormatInt(rat, 10),
		"exp": strconv.FormatInt(e.ExpiresAt.Unix(), 10),
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(jti), kv)
	pipe.Expire(ctx, c.key(jti), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) MarkRevoked(ctx context.Context, jti uuid.UUID, revokedAt time.Time) error {
	return c.rdb.HSet(ctx, c.key(jti), map[string]string{
		"rev": "1",
		"rat": strconv.FormatInt(revokedAt.Unix(), 10),
	}).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
