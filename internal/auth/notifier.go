package auth

import (
	"sync"

	"github.com/kenta/moviemate/internal/model"
)

// Notifier は認証状態変更イベントの購読/配信を提供する。
// クライアント（画面フローコントローラー）ごとに1つ保持し、
// サインアップ・サインイン・サインアウト時の状態変化を配信する。
// userがnilのイベントは「未認証になった」ことを表す。
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(user *model.User)
}

// NewNotifier はNotifierを生成する。
func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[int]func(user *model.User)),
	}
}

// Subscribe は認証状態変更の購読を開始し、購読解除関数を返す。
// 購読解除関数は複数回呼んでも安全。
// 呼び出し側は監視を終えるときに必ず購読解除することで、
// コールバックのリークを防ぐ。
func (n *Notifier) Subscribe(fn func(user *model.User)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Publish は全ての購読者に認証状態変更イベントを配信する。
// 配信順序は呼び出し順を保持する（同一Notifierに対するPublishは直列化される）。
func (n *Notifier) Publish(user *model.User) {
	n.mu.Lock()
	fns := make([]func(user *model.User), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

// SubscriberCount は現在の購読者数を返す。テストとデバッグ用。
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
