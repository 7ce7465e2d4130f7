package auth

import (
	"testing"

	"github.com/kenta/moviemate/internal/model"
)

func TestNotifier_SubscribeAndPublish(t *testing.T) {
	n := NewNotifier()

	var received []*model.User
	n.Subscribe(func(user *model.User) {
		received = append(received, user)
	})

	user := &model.User{ID: "user-1"}
	n.Publish(user)
	n.Publish(nil)

	if len(received) != 2 {
		t.Fatalf("received %d events, want 2", len(received))
	}
	if received[0] != user {
		t.Error("first event should be the user")
	}
	if received[1] != nil {
		t.Error("second event should be nil")
	}
}

func TestNotifier_Unsubscribe_StopsDelivery(t *testing.T) {
	n := NewNotifier()

	count := 0
	unsubscribe := n.Subscribe(func(_ *model.User) {
		count++
	})

	n.Publish(&model.User{ID: "user-1"})
	unsubscribe()
	n.Publish(&model.User{ID: "user-2"})

	if count != 1 {
		t.Errorf("count = %d, want 1 (no delivery after unsubscribe)", count)
	}
	if n.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n.SubscriberCount())
	}
}

func TestNotifier_Unsubscribe_Idempotent(t *testing.T) {
	n := NewNotifier()

	unsubscribe := n.Subscribe(func(_ *model.User) {})
	unsubscribe()
	unsubscribe() // 2回目も安全

	if n.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n.SubscriberCount())
	}
}

func TestNotifier_MultipleSubscribers_AllReceive(t *testing.T) {
	n := NewNotifier()

	countA, countB := 0, 0
	n.Subscribe(func(_ *model.User) { countA++ })
	n.Subscribe(func(_ *model.User) { countB++ })

	n.Publish(&model.User{ID: "user-1"})

	if countA != 1 || countB != 1 {
		t.Errorf("countA=%d countB=%d, want both 1", countA, countB)
	}
}
