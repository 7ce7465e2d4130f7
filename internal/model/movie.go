// Package model はドメインモデルを定義する。
package model

// MovieRef はプロフィールドキュメントに埋め込む映画の参照情報を表す。
// お気に入り・ウォッチリストの要素として永続化され、idで同一性を判定する。
type MovieRef struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
}

// Movie はトレンド/検索エンドポイントから取得する映画情報を表す。
// MovieRefより広いフィールドを持ち、一覧表示と詳細表示に使用する。
type Movie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	GenreIDs         []int   `json:"genre_ids"`
	Adult            bool    `json:"adult"`
}

// Ref はMovieからプロフィールドキュメント埋め込み用のMovieRefを生成する。
func (m *Movie) Ref() MovieRef {
	return MovieRef{
		ID:          m.ID,
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		VoteAverage: m.VoteAverage,
		ReleaseDate: m.ReleaseDate,
	}
}
