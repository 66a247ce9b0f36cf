package catalog

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/sporthub/internal/model"
)

//go:embed seed/events.yaml
var seedYAML []byte

// seedNamespace はサンプルデータのID生成に使う名前空間。
// 同じkeyからは常に同じIDが生成される。
var seedNamespace = uuid.MustParse("6f1c8c4e-2d0a-4b7e-9a51-3c9d2f7e8b10")

type seedOrganizer struct {
	Key           string  `yaml:"key"`
	Name          string  `yaml:"name"`
	Email         string  `yaml:"email"`
	Phone         string  `yaml:"phone"`
	Verified      bool    `yaml:"verified"`
	Rating        float64 `yaml:"rating"`
	TotalEvents   int     `yaml:"total_events"`
	JoinedDaysAgo int     `yaml:"joined_days_ago"`
	Bio           string  `yaml:"bio"`
}

type seedEvent struct {
	Key                 string             `yaml:"key"`
	Title               string             `yaml:"title"`
	Description         string             `yaml:"description"`
	Category            string             `yaml:"category"`
	DaysFromNow         int                `yaml:"days_from_now"`
	Time                string             `yaml:"time"`
	Location            string             `yaml:"location"`
	Coordinates         *model.Coordinates `yaml:"coordinates"`
	Price               float64            `yaml:"price"`
	MaxParticipants     int                `yaml:"max_participants"`
	CurrentParticipants int                `yaml:"current_participants"`
	Organizer           string             `yaml:"organizer"`
	Indoor              bool               `yaml:"indoor"`
	AgeGroup            string             `yaml:"age_group"`
	FamilyFriendly      bool               `yaml:"family_friendly"`
	ContactInfo         string             `yaml:"contact_info"`
	Requirements        string             `yaml:"requirements"`
}

type seedFile struct {
	Organizers []seedOrganizer `yaml:"organizers"`
	Events     []seedEvent     `yaml:"events"`
}

// LoadSeed は埋め込みのサンプルデータをnow基準の日付で展開する。
func LoadSeed(now time.Time) ([]model.Event, error) {
	return parseSeed(seedYAML, now)
}

func parseSeed(data []byte, now time.Time) ([]model.Event, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("サンプルデータの解析に失敗しました: %w", err)
	}

	organizers := make(map[string]model.Organizer, len(f.Organizers))
	for _, o := range f.Organizers {
		organizers[o.Key] = model.Organizer{
			ID:          seedID("organizer", o.Key),
			Name:        o.Name,
			Email:       o.Email,
			Phone:       o.Phone,
			IsVerified:  o.Verified,
			Rating:      o.Rating,
			TotalEvents: o.TotalEvents,
			JoinDate:    now.AddDate(0, 0, -o.JoinedDaysAgo),
			Bio:         o.Bio,
		}
	}

	events := make([]model.Event, 0, len(f.Events))
	for _, s := range f.Events {
		org, ok := organizers[s.Organizer]
		if !ok {
			return nil, fmt.Errorf("イベント %q の主催者 %q が定義されていません", s.Key, s.Organizer)
		}
		category, err := model.ParseSportCategory(s.Category)
		if err != nil {
			return nil, fmt.Errorf("イベント %q: %w", s.Key, err)
		}
		ageGroup, err := model.ParseAgeGroup(s.AgeGroup)
		if err != nil {
			return nil, fmt.Errorf("イベント %q: %w", s.Key, err)
		}

		events = append(events, model.Event{
			ID:                  seedID("event", s.Key),
			Title:               s.Title,
			Description:         s.Description,
			Category:            category,
			Date:                now.AddDate(0, 0, s.DaysFromNow),
			TimeLabel:           s.Time,
			Location:            s.Location,
			Coordinates:         s.Coordinates,
			Price:               s.Price,
			IsFree:              s.Price == 0,
			MaxParticipants:     s.MaxParticipants,
			CurrentParticipants: s.CurrentParticipants,
			Organizer:           org,
			IsIndoor:            s.Indoor,
			AgeGroup:            ageGroup,
			IsFamilyFriendly:    s.FamilyFriendly,
			ContactInfo:         s.ContactInfo,
			Requirements:        s.Requirements,
		})
	}
	return events, nil
}

func seedID(kind, key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+key)).String()
}
