package flow

import (
	"testing"
	"time"

	"github.com/kenta/moviemate/internal/model"
)

func TestRegistry_Get_CreatesControllerAndSubscribes(t *testing.T) {
	r := NewRegistry()

	controller, notifier := r.Get("client-1")
	if controller == nil || notifier == nil {
		t.Fatal("expected non-nil controller and notifier")
	}
	if notifier.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1", notifier.SubscriberCount())
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_Get_SameClientID_ReturnsSameController(t *testing.T) {
	r := NewRegistry()

	c1, n1 := r.Get("client-1")
	c2, n2 := r.Get("client-1")

	if c1 != c2 {
		t.Error("expected same controller for same client ID")
	}
	if n1 != n2 {
		t.Error("expected same notifier for same client ID")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistry_Get_DifferentClients_AreIsolated(t *testing.T) {
	r := NewRegistry()

	c1, n1 := r.Get("client-1")
	c2, _ := r.Get("client-2")

	if c1 == c2 {
		t.Fatal("expected different controllers for different clients")
	}

	// client-1のauth-changeはclient-2に影響しない
	n1.Publish(&model.User{ID: "user-1"})

	if c1.State().Screen == c2.State().Screen && c1.State().Screen == ScreenMain {
		t.Error("client-2 should not react to client-1 events")
	}
}

// Notifierへの配信がコントローラーの画面遷移を駆動することを検証する。
func TestRegistry_NotifierDrivesController(t *testing.T) {
	r := NewRegistry()
	// クロック注入のため生成関数を差し替える
	clock := newFakeClock()
	timers := &manualTimers{}
	r.newController = func() *Controller {
		return NewControllerWithClock(clock.now, timers.factory)
	}

	controller, notifier := r.Get("client-1")
	clock.advance(2 * time.Second) // 起動スプラッシュ期間は経過済み

	notifier.Publish(&model.User{ID: "user-1"})
	if controller.State().Screen != ScreenMain {
		t.Errorf("Screen = %q, want MAIN after auth-change(user)", controller.State().Screen)
	}
}

func TestRegistry_Evict_Unsubscribes(t *testing.T) {
	r := NewRegistry()

	_, notifier := r.Get("client-1")
	if notifier.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", notifier.SubscriberCount())
	}

	r.Evict("client-1")

	// 破棄後は購読が解除され、コールバックがリークしない
	if notifier.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0 after evict", notifier.SubscriberCount())
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_Evict_UnknownClient_IsNoop(t *testing.T) {
	r := NewRegistry()
	r.Evict("no-such-client")
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRegistry_EvictIdle_RemovesStaleClients(t *testing.T) {
	r := NewRegistry()
	clock := newFakeClock()
	r.now = clock.now

	_, oldNotifier := r.Get("stale-client")

	clock.advance(2 * time.Hour)
	r.Get("fresh-client")

	evicted := r.EvictIdle(1 * time.Hour)
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if oldNotifier.SubscriberCount() != 0 {
		t.Errorf("stale client's SubscriberCount = %d, want 0", oldNotifier.SubscriberCount())
	}
}
