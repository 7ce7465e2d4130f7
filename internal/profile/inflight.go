package profile

import (
	"fmt"
	"sync"
)

// inflightGuard は進行中の変更操作をキー単位で追跡する。
// 同一キーの操作が完了する前に次の操作が来た場合、後続を拒否するために使う。
// キーは (ユーザーID, 操作種別, 映画ID) の組。
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{
		keys: make(map[string]struct{}),
	}
}

// inflightKey は進行中管理のキーを構築する。
func inflightKey(userID, kind string, movieID int) string {
	return fmt.Sprintf("%s/%s/%d", userID, kind, movieID)
}

// tryAcquire はキーの取得を試みる。既に進行中の場合はfalseを返す。
func (g *inflightGuard) tryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.keys[key]; exists {
		return false
	}
	g.keys[key] = struct{}{}
	return true
}

// release はキーを解放する。取得していないキーの解放は何もしない。
func (g *inflightGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
}
