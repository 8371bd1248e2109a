package matchmaker

import (
	"context"
	"encoding/json"
	"time"

	"TurnMatch/internal/turnmatch"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set: mm:pool:{pool}:{min}-{max}   -> Set(matchID,...) 有空位的对局
//	kv : mm:match:{id}                -> 对局 JSON
//	set: mm:playerMatches:{address}   -> Set(matchID,...)
func (r *redisRepo) Advertise(ctx context.Context, key string, matchID string) error {
	return r.rdb.SAdd(ctx, key, matchID).Err()
}

func (r *redisRepo) PopOpen(ctx context.Context, key string) (string, error) {
	// SPOP 随机弹出并删除（原子），集合为空时 key 自动消失
	id, err := r.rdb.SPop(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// withdrawScript 移除成员；若集合空则删除集合
// KEYS[1] = poolKey, ARGV[1] = matchID
var withdrawScript = redis.NewScript(`
	redis.call("SREM", KEYS[1], ARGV[1])
	if redis.call("SCARD", KEYS[1]) == 0 then
		redis.call("DEL", KEYS[1])
	end
	return 1
`)

func (r *redisRepo) Withdraw(ctx context.Context, key string, matchID string) error {
	if err := withdrawScript.Run(ctx, r.rdb, []string{key}, matchID).Err(); err != nil {
		// 不支持脚本时回退到非原子实现；SREM 移除最后一个成员时 redis 会自行删除 key
		return r.rdb.SRem(ctx, key, matchID).Err()
	}
	return nil
}

func (r *redisRepo) CountOpen(ctx context.Context, key string) (int64, error) {
	return r.rdb.SCard(ctx, key).Result()
}

func (r *redisRepo) SaveMatch(ctx context.Context, m *turnmatch.Match, ttlSeconds int) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	p := r.rdb.Pipeline()
	p.Set(ctx, matchKey(m.ID), data, ttl)
	for _, addr := range m.Players() {
		p.SAdd(ctx, playerMatchesKey(addr), m.ID)
		if ttl > 0 {
			p.Expire(ctx, playerMatchesKey(addr), ttl)
		}
	}
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) LoadMatch(ctx context.Context, id string) (*turnmatch.Match, error) {
	data, err := r.rdb.Get(ctx, matchKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	var m turnmatch.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *redisRepo) PlayerMatches(ctx context.Context, player string) ([]string, error) {
	return r.rdb.SMembers(ctx, playerMatchesKey(player)).Result()
}

func (r *redisRepo) Forget(ctx context.Context, player string, matchID string) error {
	return r.rdb.SRem(ctx, playerMatchesKey(player), matchID).Err()
}
