// Package profile はユーザーごとのプロフィールドキュメントに対する
// お気に入り/ウォッチリスト/評価の操作を提供する。
//
// 3種類の操作は対称で、いずれも「最新のドキュメントを読み直してから変更する」。
// お気に入りとウォッチリストの追加/削除はストア側のアトミックな集合操作で行い、
// ドキュメント全体の上書きはしない。評価のみマップ全体の上書きであり、
// 同一ユーザーの異なる映画への同時評価は後勝ちになる（既知の制限）。
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kenta/moviemate/internal/model"
	"github.com/kenta/moviemate/internal/repository"
)

// 進行中管理の操作種別。
const (
	kindFavorite  = "favorite"
	kindWatchlist = "watchlist"
	kindRating    = "rating"
)

// MovieState は1つの映画に対するユーザーの状態スナップショット。
type MovieState struct {
	IsFavorite    bool `json:"isFavorite"`
	IsInWatchlist bool `json:"isInWatchlist"`
	UserRating    int  `json:"userRating"`
}

// Service はプロフィールドキュメントに対する操作を提供する。
type Service struct {
	repo     repository.ProfileRepository
	inflight *inflightGuard
}

// NewService はServiceを生成する。
func NewService(repo repository.ProfileRepository) *Service {
	return &Service{
		repo:     repo,
		inflight: newInflightGuard(),
	}
}

// Status は指定映画に対するユーザーの状態を返す。
// 未認証・プロフィール未作成・未登録の映画はいずれもゼロ値になる。
// ストア障害以外でエラーを返すことはない。
func (s *Service) Status(ctx context.Context, userID string, movieID int) (MovieState, error) {
	if userID == "" {
		return MovieState{}, nil
	}

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return MovieState{}, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return MovieState{}, nil
	}

	return MovieState{
		IsFavorite:    p.HasFavorite(movieID),
		IsInWatchlist: p.HasWatchlist(movieID),
		UserRating:    p.RatingFor(movieID),
	}, nil
}

// GetProfile は指定ユーザーのプロフィールドキュメント全体を返す。
// 未認証はUNAUTHENTICATED、ドキュメント未作成はPROFILE_NOT_FOUNDを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError(userID)
	}

	return p, nil
}

// ToggleFavorite はお気に入りの所属をトグルする。
// 戻り値はトグル後の所属状態（true=追加された）。
// 同一 (ユーザー, 映画) への変更が進行中の場合はTOGGLE_IN_FLIGHTで拒否する。
func (s *Service) ToggleFavorite(ctx context.Context, userID string, movieID int, ref model.MovieRef) (bool, error) {
	return s.toggle(ctx, kindFavorite, userID, movieID, ref)
}

// ToggleWatchlist はウォッチリストの所属をトグルする。
// 戻り値はトグル後の所属状態（true=追加された）。
func (s *Service) ToggleWatchlist(ctx context.Context, userID string, movieID int, ref model.MovieRef) (bool, error) {
	return s.toggle(ctx, kindWatchlist, userID, movieID, ref)
}

// toggle はお気に入り/ウォッチリスト共通のトグル処理。
// 1. 進行中キーを取得（取得失敗はTOGGLE_IN_FLIGHT）
// 2. 最新のドキュメントを読み直す（未作成はPROFILE_NOT_FOUND、書き込みなし）
// 3. 現在の所属に応じてアトミックな集合追加/削除を1回だけ発行する
func (s *Service) toggle(ctx context.Context, kind, userID string, movieID int, ref model.MovieRef) (bool, error) {
	if userID == "" {
		return false, model.NewUnauthenticatedError()
	}

	key := inflightKey(userID, kind, movieID)
	if !s.inflight.tryAcquire(key) {
		return false, model.NewToggleInFlightError()
	}
	defer s.inflight.release(key)

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return false, model.NewProfileNotFoundError(userID)
	}

	// ドキュメント内の参照はidで同一性を判定するため、refのidを揃える
	ref.ID = movieID

	switch kind {
	case kindFavorite:
		if p.HasFavorite(movieID) {
			if err := s.repo.RemoveFavorite(ctx, userID, movieID); err != nil {
				return false, fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
			}
			s.logToggle(userID, kind, movieID, false)
			return false, nil
		}
		if err := s.repo.AddFavorite(ctx, userID, ref); err != nil {
			return false, fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
		}
		s.logToggle(userID, kind, movieID, true)
		return true, nil

	case kindWatchlist:
		if p.HasWatchlist(movieID) {
			if err := s.repo.RemoveFromWatchlist(ctx, userID, movieID); err != nil {
				return false, fmt.Errorf("ウォッチリストの削除に失敗しました: %w", err)
			}
			s.logToggle(userID, kind, movieID, false)
			return false, nil
		}
		if err := s.repo.AddToWatchlist(ctx, userID, ref); err != nil {
			return false, fmt.Errorf("ウォッチリストへの追加に失敗しました: %w", err)
		}
		s.logToggle(userID, kind, movieID, true)
		return true, nil
	}

	return false, fmt.Errorf("unknown toggle kind: %s", kind)
}

// SetRating は指定映画の評価を設定する。
// 値は1〜5に制限され、範囲外はRATING_OUT_OF_RANGEを返す。
// 評価マップは読み取り-変更-書き込みで全体を上書きするため、
// 同一ユーザーの異なる映画への同時評価は後勝ちになる。
func (s *Service) SetRating(ctx context.Context, userID string, movieID, value int) error {
	if userID == "" {
		return model.NewUnauthenticatedError()
	}
	if !model.ValidRating(value) {
		return model.NewRatingOutOfRangeError(value)
	}

	key := inflightKey(userID, kindRating, movieID)
	if !s.inflight.tryAcquire(key) {
		return model.NewToggleInFlightError()
	}
	defer s.inflight.release(key)

	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return model.NewProfileNotFoundError(userID)
	}

	ratings := make(map[int]int, len(p.Ratings)+1)
	for id, v := range p.Ratings {
		ratings[id] = v
	}
	ratings[movieID] = value

	if err := s.repo.UpdateRatings(ctx, userID, ratings); err != nil {
		return fmt.Errorf("評価の更新に失敗しました: %w", err)
	}

	slog.Info("rating set",
		slog.String("user_id", userID),
		slog.Int("movie_id", movieID),
		slog.Int("value", value),
	)
	return nil
}

func (s *Service) logToggle(userID, kind string, movieID int, active bool) {
	slog.Info("toggle applied",
		slog.String("user_id", userID),
		slog.String("kind", kind),
		slog.Int("movie_id", movieID),
		slog.Bool("active", active),
	)
}
