// Package auth はメール/パスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/repository"
	"github.com/kenta/moviemate/internal/security"
)

// MinPasswordLength はサインアップ時に要求するパスワードの最小文字数。
const MinPasswordLength = 6

// emailPattern はメールアドレスの形式検証パターン。
// 厳密なRFC検証ではなく「@とドメイン部のドットを含む」程度の形式チェック。
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   security.TextSanitizerService
	config      ServiceConfig

	// now はテストで時刻を固定するために差し替え可能にしている。
	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer security.TextSanitizerService,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		config:      config,
		now:         time.Now,
	}
}

// SignUp は新規アカウントとプロフィールドキュメントを作成する。
// セッションは発行しない。作成成功後、notifierに対して
// auth-change(user)（アカウント作成完了）に続けてauth-change(nil)（未認証へ復帰）を
// この順序で必ず配信する。呼び出し側はこの2連イベントを契約として扱い、
// サインイン画面への誘導に使用する。
func (s *Service) SignUp(ctx context.Context, notifier *Notifier, name, email, password string) (*model.User, error) {
	// 1. 入力バリデーション
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return nil, model.NewValidationError("名前を入力してください")
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if !emailPattern.MatchString(email) {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	if len(password) < MinPasswordLength {
		return nil, model.NewWeakPasswordError()
	}

	// 2. メールアドレスの重複確認
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	// 3. パスワードハッシュとユーザー/プロフィールの同時作成
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &model.Profile{
		UserID:    user.ID,
		Name:      name,
		Email:     email,
		CreatedAt: now,
	}

	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	// 4. auth-change(user) → auth-change(nil) の順序で配信する。
	// アカウント作成完了を一度通知してから未認証状態に戻すことで、
	// 呼び出し側は「作成成功→サインインへ誘導」の遷移を組み立てられる。
	if notifier != nil {
		notifier.Publish(user)
		notifier.Publish(nil)
	}

	return user, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// 認証成功時はnotifierにauth-change(user)を配信する。
func (s *Service) SignIn(ctx context.Context, notifier *Notifier, email, password string) (*model.User, *model.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, nil, model.NewValidationError("メールアドレスとパスワードを入力してください")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, nil, model.NewInvalidCredentialError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))

	if notifier != nil {
		notifier.Publish(user)
	}

	return user, session, nil
}

// SignOut はセッションを破棄し、notifierにauth-change(nil)を配信する。
func (s *Service) SignOut(ctx context.Context, notifier *Notifier, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))

	if notifier != nil {
		notifier.Publish(nil)
	}

	return nil
}

// UpdateDisplayName はユーザーの表示名を更新する。
// 表示名はサニタイズされ、空になる場合はバリデーションエラーを返す。
func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) error {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return model.NewValidationError("名前を入力してください")
	}

	if err := s.userRepo.UpdateName(ctx, userID, name); err != nil {
		return fmt.Errorf("表示名の更新に失敗しました: %w", err)
	}

	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
