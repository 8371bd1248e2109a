package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store 保存一次性 nonce 与平台会话
type Store interface {
	SaveNonce(ctx context.Context, nonce string, ttl time.Duration) error
	// ConsumeNonce 取出并删除 nonce，只允许使用一次
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
	StartSession(ctx context.Context, address string, ttl time.Duration) error
	EndSession(ctx context.Context, address string) error
	// Authenticated reports whether address holds a live session.
	Authenticated(ctx context.Context, address string) (bool, error)
}

func nonceKey(nonce string) string {
	return fmt.Sprintf("auth:nonce:%s", nonce)
}

func sessionKey(address string) string {
	return fmt.Sprintf("auth:session:%s", strings.ToLower(address))
}

type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) SaveNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.rdb.Set(ctx, nonceKey(nonce), 1, ttl).Err()
}

func (s *redisStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	_, err := s.rdb.GetDel(ctx, nonceKey(nonce)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *redisStore) StartSession(ctx context.Context, address string, ttl time.Duration) error {
	return s.rdb.Set(ctx, sessionKey(address), time.Now().Unix(), ttl).Err()
}

func (s *redisStore) EndSession(ctx context.Context, address string) error {
	return s.rdb.Del(ctx, sessionKey(address)).Err()
}

func (s *redisStore) Authenticated(ctx context.Context, address string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKey(address)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// memStore 内存版，仅供测试与单机调试
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nonces   map[string]time.Time
	sessions map[string]time.Time
}

func NewMemoryStore() Store {
	return &memStore{
		now:      time.Now,
		nonces:   make(map[string]time.Time),
		sessions: make(map[string]time.Time),
	}
}

func (s *memStore) SaveNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonce] = s.now().Add(ttl)
	return nil
}

func (s *memStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	delete(s.nonces, nonce)
	return ok && s.now().Before(exp), nil
}

func (s *memStore) StartSession(ctx context.Context, address string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[strings.ToLower(address)] = s.now().Add(ttl)
	return nil
}

func (s *memStore) EndSession(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, strings.ToLower(address))
	return nil
}

func (s *memStore) Authenticated(ctx context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[strings.ToLower(address)]
	return ok && s.now().Before(exp), nil
}
