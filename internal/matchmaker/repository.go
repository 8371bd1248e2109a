package matchmaker

import (
	"context"
	"errors"
	"fmt"

	"TurnMatch/internal/turnmatch"
)

var ErrMatchNotFound = errors.New("match not found")

// Repo 定义对匹配池与对局记录的抽象操作
type Repo interface {
	// Advertise 将有空位的对局放入匹配池
	Advertise(ctx context.Context, key string, matchID string) error
	// PopOpen 随机取出一个有空位的对局（原子），池为空时返回 ""
	PopOpen(ctx context.Context, key string) (string, error)
	// Withdraw 从匹配池移除对局
	Withdraw(ctx context.Context, key string, matchID string) error
	// CountOpen 返回池内对局数
	CountOpen(ctx context.Context, key string) (int64, error)

	SaveMatch(ctx context.Context, m *turnmatch.Match, ttlSeconds int) error
	LoadMatch(ctx context.Context, id string) (*turnmatch.Match, error)
	// PlayerMatches 玩家参与过的对局 ID
	PlayerMatches(ctx context.Context, player string) ([]string, error)
	// Forget 将对局从玩家索引中移除
	Forget(ctx context.Context, player string, matchID string) error
}

// poolKey 匹配池 key：mm:pool:{pool}:{min}-{max}
func poolKey(pool string, minPlayers, maxPlayers int) string {
	return fmt.Sprintf("mm:pool:%s:%d-%d", pool, minPlayers, maxPlayers)
}

func matchKey(id string) string {
	return fmt.Sprintf("mm:match:%s", id)
}

func playerMatchesKey(player string) string {
	return fmt.Sprintf("mm:playerMatches:%s", player)
}
