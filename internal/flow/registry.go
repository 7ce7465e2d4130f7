package flow

import (
	"sync"
	"time"

	"github.com/kenta/moviemate/internal/auth"
)

// Registry はクライアントIDごとの画面フローコントローラーを管理する。
// コントローラー生成時にクライアント専用のauth.Notifierへ購読を張り、
// 破棄時に必ず購読解除することでコールバックのリークを防ぐ。
type Registry struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	now     func() time.Time

	// newController はテストでクロック注入済みコントローラーに差し替える。
	newController func() *Controller
}

// clientEntry はクライアント1つ分のコントローラーとNotifierの組。
type clientEntry struct {
	controller *Controller
	notifier   *auth.Notifier
	lastSeen   time.Time
}

// NewRegistry はRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		clients:       make(map[string]*clientEntry),
		now:           time.Now,
		newController: NewController,
	}
}

// Get は指定クライアントのコントローラーとNotifierを返す。
// 未登録のクライアントIDの場合は新しく生成し、
// コントローラーをNotifierへ購読させてから返す。
func (r *Registry) Get(clientID string) (*Controller, *auth.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.clients[clientID]
	if !ok {
		controller := r.newController()
		notifier := auth.NewNotifier()
		controller.bindUnsubscribe(notifier.Subscribe(controller.OnAuthChange))

		entry = &clientEntry{
			controller: controller,
			notifier:   notifier,
		}
		r.clients[clientID] = entry
	}
	entry.lastSeen = r.now()

	return entry.controller, entry.notifier
}

// Evict は指定クライアントのコントローラーを破棄する。
// コントローラーのCloseにより購読解除が保証される。
func (r *Registry) Evict(clientID string) {
	r.mu.Lock()
	entry, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()

	if ok {
		entry.controller.Close()
	}
}

// EvictIdle は最終アクセスからmaxIdle以上経過したクライアントを破棄し、
// 破棄件数を返す。クリーンアップワーカーから定期的に呼び出される。
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*clientEntry
	for id, entry := range r.clients {
		if entry.lastSeen.Before(cutoff) {
			evicted = append(evicted, entry)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range evicted {
		entry.controller.Close()
	}
	return len(evicted)
}

// Len は現在管理中のクライアント数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
