package user

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kenta/moviemate/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	return nil
}
func (m *mockUserRepo) UpdateName(ctx context.Context, id, name string) error {
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFn(ctx, id)
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn == nil {
		return nil
	}
	return m.deleteByUserIDFn(ctx, userID)
}
func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockProfileRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) AddFavorite(ctx context.Context, userID string, ref model.MovieRef) error {
	return nil
}
func (m *mockProfileRepo) RemoveFavorite(ctx context.Context, userID string, movieID int) error {
	return nil
}
func (m *mockProfileRepo) AddToWatchlist(ctx context.Context, userID string, ref model.MovieRef) error {
	return nil
}
func (m *mockProfileRepo) RemoveFromWatchlist(ctx context.Context, userID string, movieID int) error {
	return nil
}
func (m *mockProfileRepo) UpdateRatings(ctx context.Context, userID string, ratings map[int]int) error {
	return nil
}
func (m *mockProfileRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn == nil {
		return nil
	}
	return m.deleteByUserIDFn(ctx, userID)
}

// --- テスト ---

// TestService_Withdraw は退会処理が関連データを正しい順序で削除することを検証する。
func TestService_Withdraw(t *testing.T) {
	var order []string

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "kenta@example.com", CreatedAt: time.Now()}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			order = append(order, "user")
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			order = append(order, "sessions")
			return nil
		},
	}
	profileRepo := &mockProfileRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			order = append(order, "profile")
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, profileRepo)

	err := svc.Withdraw(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	want := []string{"profile", "sessions", "user"}
	if len(order) != len(want) {
		t.Fatalf("deletions = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("deletion order = %v, want %v", order, want)
			break
		}
	}
}

// TestService_Withdraw_UserNotFound は存在しないユーザーの退会がエラーになることを検証する。
func TestService_Withdraw_UserNotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, &mockProfileRepo{})

	err := svc.Withdraw(context.Background(), "missing-user")
	if err == nil {
		t.Fatal("expected error for missing user")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("error = %v, want USER_NOT_FOUND", err)
	}
}

// TestService_Withdraw_ProfileDeleteFails は途中の削除失敗で処理が中断されることを検証する。
func TestService_Withdraw_ProfileDeleteFails(t *testing.T) {
	userDeleteCalled := false

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			userDeleteCalled = true
			return nil
		},
	}
	profileRepo := &mockProfileRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			return fmt.Errorf("database connection lost")
		},
	}
	svc := NewService(userRepo, &mockSessionRepo{}, profileRepo)

	err := svc.Withdraw(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error when profile deletion fails")
	}
	if userDeleteCalled {
		t.Error("user should not be deleted when profile deletion fails")
	}
}
