package model

import (
	"fmt"
	"time"
)

// ActivityStatus はユーザーとイベントの関係状態を表す。
type ActivityStatus string

const (
	ActivityStatusInterested ActivityStatus = "interested"
	ActivityStatusGoing      ActivityStatus = "going"
	ActivityStatusCompleted  ActivityStatus = "completed"
	ActivityStatusCancelled  ActivityStatus = "cancelled"
)

// ParseActivityStatus は文字列をActivityStatusに変換する。
func ParseActivityStatus(s string) (ActivityStatus, error) {
	switch st := ActivityStatus(s); st {
	case ActivityStatusInterested, ActivityStatusGoing, ActivityStatusCompleted, ActivityStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown activity status: %q", s)
	}
}

// UserActivity はユーザーのイベント参加記録を表す。
// 参加時点のEventのスナップショットを保持し、作成後は変更しない。
type UserActivity struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Event    Event          `json:"event"`
	Status   ActivityStatus `json:"status"`
	JoinDate time.Time      `json:"join_date"`
	Notes    string         `json:"notes,omitempty"`
}

// ActivityStats はプロフィール画面向けの集計値。
type ActivityStats struct {
	TotalActivities  int `json:"total_activities"`
	UpcomingThisWeek int `json:"upcoming_this_week"`
	JoinedThisMonth  int `json:"joined_this_month"`
}
