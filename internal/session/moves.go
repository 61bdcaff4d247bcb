package session

import (
	"context"
	"errors"
	"sync"

	"rpsnet/internal/game"
)

// ErrQuit is returned by a MoveSource when the local player leaves. The
// peer answers it by sending Disconnect.
var ErrQuit = errors.New("local player quit")

// MoveSource supplies the local player's move for a round. NextMove may
// block for as long as a human needs; ctx is cancelled when the session
// ends first.
type MoveSource interface {
	NextMove(ctx context.Context, round uint64) (game.Move, error)
}

type MoveSourceFunc func(ctx context.Context, round uint64) (game.Move, error)

func (f MoveSourceFunc) NextMove(ctx context.Context, round uint64) (game.Move, error) {
	return f(ctx, round)
}

// ScriptedMoves plays moves in order and quits once they run out.
func ScriptedMoves(moves ...game.Move) MoveSource {
	var (
		mu   sync.Mutex
		next int
	)
	return MoveSourceFunc(func(ctx context.Context, round uint64) (game.Move, error) {
		mu.Lock()
		defer mu.Unlock()

		if next >= len(moves) {
			return "", ErrQuit
		}
		m := moves[next]
		next++
		return m, nil
	})
}

// RandomMoves plays limit random moves and then quits. A limit of zero
// or less never quits.
func RandomMoves(limit int) MoveSource {
	var (
		mu     sync.Mutex
		played int
	)
	return MoveSourceFunc(func(ctx context.Context, round uint64) (game.Move, error) {
		mu.Lock()
		defer mu.Unlock()

		if limit > 0 && played >= limit {
			return "", ErrQuit
		}
		played++
		return game.RandomMove(), nil
	})
}
