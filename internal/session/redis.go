package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "import:session:"

// casScript performs the status compare-and-set server-side so two replicas
// racing on the same session id cannot both win the commit.
var casScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 'missing'
end
local sess = cjson.decode(raw)
if sess.status ~= ARGV[1] then
  return sess.status
end
sess.status = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(sess), 'KEEPTTL')
return 'ok'
`)

// RedisStore keeps sessions in Redis so any service replica can serve the
// commit. Expiry is delegated to the key TTL: a vanished key reads as
// expired-or-missing, which the API reports uniformly as not found.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}
	return s.client.Set(ctx, redisKeyPrefix+sess.ID, payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Status == StatusExpired {
		return nil, ErrExpired
	}
	return &sess, nil
}

func (s *RedisStore) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	res, err := casScript.Run(ctx, s.client, []string{redisKeyPrefix + id}, string(from), string(to)).Text()
	if err != nil {
		return fmt.Errorf("failed to transition session status: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "missing":
		return ErrNotFound
	case string(StatusExpired):
		return ErrExpired
	default:
		return ErrConflict
	}
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKeyPrefix+id).Err()
}
