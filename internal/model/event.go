// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// SportCategory はイベントのスポーツカテゴリを表す。
type SportCategory string

const (
	CategoryFootball    SportCategory = "football"
	CategoryBadminton   SportCategory = "badminton"
	CategoryYoga        SportCategory = "yoga"
	CategoryGym         SportCategory = "gym"
	CategoryRunning     SportCategory = "running"
	CategoryMartialArts SportCategory = "martial_arts"
	CategoryFamily      SportCategory = "family"
	CategoryOthers      SportCategory = "others"
)

// SportCategories は定義済みカテゴリの一覧（表示順）。
var SportCategories = []SportCategory{
	CategoryFootball,
	CategoryBadminton,
	CategoryYoga,
	CategoryGym,
	CategoryRunning,
	CategoryMartialArts,
	CategoryFamily,
	CategoryOthers,
}

var sportCategoryLabels = map[SportCategory]string{
	CategoryFootball:    "Football",
	CategoryBadminton:   "Badminton",
	CategoryYoga:        "Yoga",
	CategoryGym:         "Gym",
	CategoryRunning:     "Running",
	CategoryMartialArts: "Martial Arts",
	CategoryFamily:      "Family",
	CategoryOthers:      "Others",
}

// Label は表示用のカテゴリ名を返す。
func (c SportCategory) Label() string {
	return sportCategoryLabels[c]
}

// ParseSportCategory は文字列をSportCategoryに変換する。
// 未定義の値の場合はエラーを返す。
func ParseSportCategory(s string) (SportCategory, error) {
	c := SportCategory(s)
	if _, ok := sportCategoryLabels[c]; !ok {
		return "", fmt.Errorf("unknown sport category: %q", s)
	}
	return c, nil
}

// AgeGroup はイベントの対象年齢層を表す。
type AgeGroup string

const (
	AgeGroupAll         AgeGroup = "all"
	AgeGroupTeens       AgeGroup = "teens"
	AgeGroupYoungAdults AgeGroup = "young_adults"
	AgeGroupAdults      AgeGroup = "adults"
	AgeGroupFamily      AgeGroup = "family"
)

var ageGroupLabels = map[AgeGroup]string{
	AgeGroupAll:         "All Ages",
	AgeGroupTeens:       "12-19",
	AgeGroupYoungAdults: "20-29",
	AgeGroupAdults:      "30-40",
	AgeGroupFamily:      "Family Friendly",
}

// Label は表示用の年齢層ラベルを返す。
func (g AgeGroup) Label() string {
	return ageGroupLabels[g]
}

// ParseAgeGroup は文字列をAgeGroupに変換する。
func ParseAgeGroup(s string) (AgeGroup, error) {
	g := AgeGroup(s)
	if _, ok := ageGroupLabels[g]; !ok {
		return "", fmt.Errorf("unknown age group: %q", s)
	}
	return g, nil
}

// Coordinates はイベント会場の緯度経度を表す。
type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Organizer はイベント主催者を表す。Eventに値として埋め込まれる。
type Organizer struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	IsVerified      bool      `json:"is_verified"`
	Rating          float64   `json:"rating"`
	TotalEvents     int       `json:"total_events"`
	JoinDate        time.Time `json:"join_date"`
	Bio             string    `json:"bio,omitempty"`
}

// イベントの文字列項目の上限（文字数）。eventsテーブルのカラム長と一致させる。
const (
	MaxTitleLength       = 200
	MaxTimeLabelLength   = 64
	MaxLocationLength    = 255
	MaxContactInfoLength = 255
)

// Event は参加可能なスポーツイベントを表す。
// 値オブジェクトとして扱い、更新は差し替え用のレコードを生成して行う。
type Event struct {
	ID                  string        `json:"id"`
	Title               string        `json:"title"`
	Description         string        `json:"description"`
	Category            SportCategory `json:"category"`
	Date                time.Time     `json:"date"`
	TimeLabel           string        `json:"time"`
	Location            string        `json:"location"`
	Coordinates         *Coordinates  `json:"coordinates,omitempty"`
	Price               float64       `json:"price"`
	IsFree              bool          `json:"is_free"`
	MaxParticipants     int           `json:"max_participants"`
	CurrentParticipants int           `json:"current_participants"`
	Organizer           Organizer     `json:"organizer"`
	ImageURL            string        `json:"image_url,omitempty"`
	IsIndoor            bool          `json:"is_indoor"`
	AgeGroup            AgeGroup      `json:"age_group"`
	IsFamilyFriendly    bool          `json:"is_family_friendly"`
	ContactInfo         string        `json:"contact_info"`
	Requirements        string        `json:"requirements,omitempty"`
}

// IsAvailable は参加枠が残っているかを返す。
func (e Event) IsAvailable() bool {
	return e.CurrentParticipants < e.MaxParticipants
}

// SpotsLeft は残り参加枠数を返す。
func (e Event) SpotsLeft() int {
	return e.MaxParticipants - e.CurrentParticipants
}

// FormattedPrice は表示用の価格文字列を返す。
func (e Event) FormattedPrice() string {
	if e.IsFree {
		return "Free"
	}
	return fmt.Sprintf("RM%.2f", e.Price)
}

// WithParticipants は参加者数のみを変更した差し替え用のEventを返す。
func (e Event) WithParticipants(n int) Event {
	e.CurrentParticipants = n
	return e
}
