// Package model はドメインモデルを定義する。
package model

import "time"

const (
	// RatingMin は映画評価の最小値。
	RatingMin = 1
	// RatingMax は映画評価の最大値。
	RatingMax = 5
)

// Profile はユーザーごとのプロフィールドキュメントを表す。
// お気に入り・ウォッチリスト・評価を1ドキュメントに保持し、
// サインアップ時に作成され、このシステムからは退会時以外削除されない。
type Profile struct {
	UserID    string      `json:"userId"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	CreatedAt time.Time   `json:"createdAt"`
	Favorites []MovieRef  `json:"favorites"`
	Watchlist []MovieRef  `json:"watchlist"`
	Ratings   map[int]int `json:"ratings"`
}

// HasFavorite は指定映画IDがお気に入りに含まれるかを返す。
// 集合のメンバーシップはidのみで判定する。
func (p *Profile) HasFavorite(movieID int) bool {
	return containsMovie(p.Favorites, movieID)
}

// HasWatchlist は指定映画IDがウォッチリストに含まれるかを返す。
func (p *Profile) HasWatchlist(movieID int) bool {
	return containsMovie(p.Watchlist, movieID)
}

// RatingFor は指定映画IDの評価を返す。未評価の場合は0を返す。
func (p *Profile) RatingFor(movieID int) int {
	return p.Ratings[movieID]
}

// ValidRating は評価値が許容範囲（1〜5）かを返す。
func ValidRating(value int) bool {
	return value >= RatingMin && value <= RatingMax
}

func containsMovie(refs []MovieRef, movieID int) bool {
	for _, ref := range refs {
		if ref.ID == movieID {
			return true
		}
	}
	return false
}
