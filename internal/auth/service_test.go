package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/repository"
	"github.com/kenta/moviemate/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn       func(ctx context.Context, email string) (*model.User, error)
	createWithProfileFn func(ctx context.Context, user *model.User, profile *model.Profile) error
	updateNameFn        func(ctx context.Context, id, name string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	if m.createWithProfileFn != nil {
		return m.createWithProfileFn(ctx, user, profile)
	}
	return nil
}

func (m *mockUserRepo) UpdateName(ctx context.Context, id, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, id, name)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// passthroughSanitizer はタグ除去を行わない素通しのサニタイザー。
// サニタイズ自体のテストはsecurityパッケージ側で行う。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(raw)
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ security.TextSanitizerService = passthroughSanitizer{}

func newTestService(userRepo *mockUserRepo, sessionRepo *mockSessionRepo) *Service {
	return NewService(userRepo, sessionRepo, passthroughSanitizer{}, ServiceConfig{SessionMaxAge: 86400})
}

// assertAPIErrorCode はエラーが指定コードのAPIErrorであることを検証する。
func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}

// --- SignUp ---

func TestSignUp_Success_PublishesUserThenNil(t *testing.T) {
	var createdUser *model.User
	var createdProfile *model.Profile
	userRepo := &mockUserRepo{
		createWithProfileFn: func(_ context.Context, user *model.User, profile *model.Profile) error {
			createdUser = user
			createdProfile = profile
			return nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	// 配信イベントを順序付きで記録する
	notifier := NewNotifier()
	var events []string
	notifier.Subscribe(func(user *model.User) {
		if user != nil {
			events = append(events, "user:"+user.Email)
		} else {
			events = append(events, "nil")
		}
	})

	user, err := svc.SignUp(context.Background(), notifier, "Alice", "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if user.Name != "Alice" {
		t.Errorf("user.Name = %q, want %q", user.Name, "Alice")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("user.Email = %q, want %q", user.Email, "alice@example.com")
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret123" {
		t.Error("expected bcrypt hash, got empty or plaintext")
	}

	// ユーザーとプロフィールが同一トランザクションの引数として渡されること
	if createdUser == nil || createdProfile == nil {
		t.Fatal("expected CreateWithProfile to be called")
	}
	if createdProfile.UserID != createdUser.ID {
		t.Errorf("profile.UserID = %q, want %q", createdProfile.UserID, createdUser.ID)
	}
	if createdProfile.Email != createdUser.Email {
		t.Errorf("profile.Email = %q, want %q", createdProfile.Email, createdUser.Email)
	}

	// auth-change(user) → auth-change(nil) の順序契約
	want := []string{"user:alice@example.com", "nil"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestSignUp_EmptyName_ReturnsValidationError(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	_, err := svc.SignUp(context.Background(), nil, "   ", "alice@example.com", "secret123")
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestSignUp_InvalidEmail_ReturnsValidationError(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	invalidEmails := []string{"", "no-at-mark", "a@b", "spaces in@mail.com"}
	for _, email := range invalidEmails {
		t.Run(email, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), nil, "Alice", email, "secret123")
			if err == nil {
				t.Fatalf("expected error for email %q", email)
			}
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
		})
	}
}

func TestSignUp_ShortPassword_ReturnsWeakPasswordError(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	_, err := svc.SignUp(context.Background(), nil, "Alice", "alice@example.com", "12345")
	if err == nil {
		t.Fatal("expected error for short password")
	}
	assertAPIErrorCode(t, err, model.ErrCodeWeakPassword)
}

func TestSignUp_DuplicateEmail_ReturnsEmailInUseError(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing", Email: email}, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	_, err := svc.SignUp(context.Background(), nil, "Alice", "alice@example.com", "secret123")
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}
	assertAPIErrorCode(t, err, model.ErrCodeEmailInUse)
}

func TestSignUp_NormalizesEmail(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createWithProfileFn: func(_ context.Context, user *model.User, _ *model.Profile) error {
			created = user
			return nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	_, err := svc.SignUp(context.Background(), nil, "Alice", "  Alice@Example.COM ", "secret123")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized %q", created.Email, "alice@example.com")
	}
}

// --- SignIn ---

func TestSignIn_UnknownEmail_ReturnsUserNotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	_, _, err := svc.SignIn(context.Background(), nil, "nobody@example.com", "secret123")
	if err == nil {
		t.Fatal("expected error for unknown email")
	}
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestSignIn_WrongPassword_ReturnsInvalidCredential(t *testing.T) {
	hash, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	_, _, err = svc.SignIn(context.Background(), nil, "alice@example.com", "wrong-password")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredential)
}

func TestSignIn_Success_IssuesSessionAndPublishesUser(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	userRepo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, Name: "Alice", PasswordHash: hash}, nil
		},
	}
	var savedSession *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(_ context.Context, session *model.Session) error {
			savedSession = session
			return nil
		},
	}
	svc := newTestService(userRepo, sessionRepo)

	notifier := NewNotifier()
	var published *model.User
	notifier.Subscribe(func(user *model.User) {
		published = user
	})

	user, session, err := svc.SignIn(context.Background(), notifier, "alice@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
	if session == nil || session.ID == "" {
		t.Fatal("expected non-empty session")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 (32 bytes hex)", len(session.ID))
	}
	if savedSession == nil || savedSession.ID != session.ID {
		t.Error("expected session to be persisted")
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("expected session to expire in the future")
	}
	if published == nil || published.ID != "user-1" {
		t.Error("expected auth-change(user) to be published")
	}
}

// --- SignOut ---

func TestSignOut_DeletesSessionAndPublishesNil(t *testing.T) {
	var deletedID string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := newTestService(&mockUserRepo{}, sessionRepo)

	notifier := NewNotifier()
	publishedNil := false
	notifier.Subscribe(func(user *model.User) {
		if user == nil {
			publishedNil = true
		}
	})

	if err := svc.SignOut(context.Background(), notifier, "session-1"); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if deletedID != "session-1" {
		t.Errorf("deleted session ID = %q, want %q", deletedID, "session-1")
	}
	if !publishedNil {
		t.Error("expected auth-change(nil) to be published")
	}
}

func TestSignOut_EmptySessionID_ReturnsError(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	if err := svc.SignOut(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

// --- UpdateDisplayName ---

func TestUpdateDisplayName_Success(t *testing.T) {
	var updatedName string
	userRepo := &mockUserRepo{
		updateNameFn: func(_ context.Context, _, name string) error {
			updatedName = name
			return nil
		},
	}
	svc := newTestService(userRepo, &mockSessionRepo{})

	if err := svc.UpdateDisplayName(context.Background(), "user-1", "  Bob  "); err != nil {
		t.Fatalf("UpdateDisplayName returned error: %v", err)
	}
	if updatedName != "Bob" {
		t.Errorf("updated name = %q, want %q", updatedName, "Bob")
	}
}

func TestUpdateDisplayName_EmptyAfterSanitize_ReturnsValidationError(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	err := svc.UpdateDisplayName(context.Background(), "user-1", "   ")
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

// --- GetCurrentUser ---

func TestGetCurrentUser_ValidSession_ReturnsUser(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "alice@example.com"}, nil
		},
	}
	svc := newTestService(userRepo, sessionRepo)

	user, err := svc.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetCurrentUser returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
}

func TestGetCurrentUser_ExpiredSession_ReturnsError(t *testing.T) {
	// FindByIDは期限切れセッションに対してnilを返す
	svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

	_, err := svc.GetCurrentUser(context.Background(), "expired-session")
	if err == nil {
		t.Fatal("expected error for expired session")
	}
}

// --- パスワード ---

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("my-password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "my-password" {
		t.Fatal("hash should not equal plaintext")
	}
	if !VerifyPassword(hash, "my-password") {
		t.Error("VerifyPassword should succeed for correct password")
	}
	if VerifyPassword(hash, "other-password") {
		t.Error("VerifyPassword should fail for wrong password")
	}
}
