package matchmaker

import (
	"context"
	"encoding/json"
	"sync"

	"TurnMatch/internal/turnmatch"
)

type memRepo struct {
	mu      sync.Mutex
	pools   map[string]map[string]struct{} // key -> set(matchID)
	matches map[string][]byte              // matchID -> json
	players map[string]map[string]struct{} // player -> set(matchID)
}

func NewMemoryRepo() Repo {
	return &memRepo{
		pools:   make(map[string]map[string]struct{}),
		matches: make(map[string][]byte),
		players: make(map[string]map[string]struct{}),
	}
}

func (m *memRepo) Advertise(ctx context.Context, key string, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[key]; !ok {
		m.pools[key] = make(map[string]struct{})
	}
	m.pools[key][matchID] = struct{}{}
	return nil
}

func (m *memRepo) PopOpen(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.pools[key]
	if !ok {
		return "", nil
	}
	// map 遍历顺序本身是随机的
	for id := range s {
		delete(s, id)
		if len(s) == 0 {
			delete(m.pools, key)
		}
		return id, nil
	}
	return "", nil
}

func (m *memRepo) Withdraw(ctx context.Context, key string, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.pools[key]; ok {
		delete(s, matchID)
		if len(s) == 0 {
			delete(m.pools, key)
		}
	}
	return nil
}

func (m *memRepo) CountOpen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pools[key])), nil
}

// TTL 在内存版中忽略
func (m *memRepo) SaveMatch(ctx context.Context, match *turnmatch.Match, ttlSeconds int) error {
	data, err := json.Marshal(match)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[match.ID] = data
	for _, p := range match.Players() {
		if _, ok := m.players[p]; !ok {
			m.players[p] = make(map[string]struct{})
		}
		m.players[p][match.ID] = struct{}{}
	}
	return nil
}

func (m *memRepo) LoadMatch(ctx context.Context, id string) (*turnmatch.Match, error) {
	m.mu.Lock()
	data, ok := m.matches[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrMatchNotFound
	}
	var match turnmatch.Match
	if err := json.Unmarshal(data, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

func (m *memRepo) PlayerMatches(ctx context.Context, player string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.players[player]))
	for id := range m.players[player] {
		out = append(out, id)
	}
	return out, nil
}

func (m *memRepo) Forget(ctx context.Context, player string, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.players[player]; ok {
		delete(s, matchID)
		if len(s) == 0 {
			delete(m.players, player)
		}
	}
	return nil
}
