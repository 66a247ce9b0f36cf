package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/hitoshi/sporthub/internal/model"
)

// Filter はイベント一覧の絞り込み条件。nilの項目は条件に含めない。
type Filter struct {
	Category *model.SportCategory
	IsFree   *bool
	AgeGroup *model.AgeGroup
}

// SortOrder は開催日時の並び順。
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ParseSortOrder は文字列をSortOrderに変換する。空文字列は昇順とみなす。
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case "":
		return SortAscending, nil
	case SortAscending, SortDescending:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sort order: %q", s)
	}
}

// ActivityView は参加記録一覧の表示区分。
type ActivityView string

const (
	ViewAll      ActivityView = "all"
	ViewUpcoming ActivityView = "upcoming"
	ViewPast     ActivityView = "past"
)

// ParseActivityView は文字列をActivityViewに変換する。空文字列はViewAll。
func ParseActivityView(s string) (ActivityView, error) {
	switch v := ActivityView(strings.ToLower(s)); v {
	case "":
		return ViewAll, nil
	case ViewAll, ViewUpcoming, ViewPast:
		return v, nil
	default:
		return "", fmt.Errorf("unknown activity view: %q", s)
	}
}

// FilterEvents は全ての条件を満たすイベントを元の順序のまま返す。
// 条件が1つも指定されていない場合は入力をそのまま返す。
func FilterEvents(events []model.Event, f Filter) []model.Event {
	if f.Category == nil && f.IsFree == nil && f.AgeGroup == nil {
		return events
	}

	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if f.Category != nil && e.Category != *f.Category {
			continue
		}
		if f.IsFree != nil && e.IsFree != *f.IsFree {
			continue
		}
		if f.AgeGroup != nil && e.AgeGroup != *f.AgeGroup {
			continue
		}
		out = append(out, e)
	}
	return out
}

// SearchEvents はタイトル、説明、開催場所のいずれかにtextを含むイベントを返す。
// 大文字小文字は区別しない。textが空の場合は入力をそのまま返す。
func SearchEvents(events []model.Event, text string) []model.Event {
	if text == "" {
		return events
	}

	fold := cases.Fold()
	needle := fold.String(text)

	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if strings.Contains(fold.String(e.Title), needle) ||
			strings.Contains(fold.String(e.Description), needle) ||
			strings.Contains(fold.String(e.Location), needle) {
			out = append(out, e)
		}
	}
	return out
}

// SortByDate は開催日時で並べ替えた新しいスライスを返す。入力は変更しない。
func SortByDate(events []model.Event, order SortOrder) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		if order == SortDescending {
			return b.Date.Compare(a.Date)
		}
		return a.Date.Compare(b.Date)
	})
	return out
}

// UpcomingActivities は開催前かつキャンセルされていない参加記録を開催日時の昇順で返す。
func UpcomingActivities(activities []model.UserActivity, now time.Time) []model.UserActivity {
	out := make([]model.UserActivity, 0, len(activities))
	for _, a := range activities {
		if a.Event.Date.After(now) && a.Status != model.ActivityStatusCancelled {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b model.UserActivity) int {
		return a.Event.Date.Compare(b.Event.Date)
	})
	return out
}

// PastActivities は開催済みまたはキャンセルされた参加記録を開催日時の降順で返す。
func PastActivities(activities []model.UserActivity, now time.Time) []model.UserActivity {
	out := make([]model.UserActivity, 0, len(activities))
	for _, a := range activities {
		if !a.Event.Date.After(now) || a.Status == model.ActivityStatusCancelled {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b model.UserActivity) int {
		return b.Event.Date.Compare(a.Event.Date)
	})
	return out
}

// CountInWindow は開催日時がfrom以上to以下のイベント数を返す。
func CountInWindow(events []model.Event, from, to time.Time) int {
	n := 0
	for _, e := range events {
		if !e.Date.Before(from) && !e.Date.After(to) {
			n++
		}
	}
	return n
}

// CountJoinedInMonth はnowと同じ暦月に参加した記録の数を返す。
// 月の境界はnowのタイムゾーンで判定する。
func CountJoinedInMonth(activities []model.UserActivity, now time.Time) int {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)

	n := 0
	for _, a := range activities {
		if !a.JoinDate.Before(start) && a.JoinDate.Before(end) {
			n++
		}
	}
	return n
}
