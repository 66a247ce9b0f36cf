package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/sporthub/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用した参加記録リポジトリ。
// イベントのスナップショットはJSONBとして保持するため、元イベントの削除後も参照できる。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Append は参加記録を追加する。
func (r *PostgresActivityRepo) Append(ctx context.Context, activity *model.UserActivity) error {
	snapshot, err := json.Marshal(activity.Event)
	if err != nil {
		return fmt.Errorf("failed to encode event snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_activities (id, user_id, event_id, event_snapshot, status, join_date, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		activity.ID, activity.UserID, activity.Event.ID, snapshot, string(activity.Status),
		activity.JoinDate, activity.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの参加記録を追加順で返す。
func (r *PostgresActivityRepo) ListByUserID(ctx context.Context, userID string) ([]model.UserActivity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, event_snapshot, status, join_date, notes
		 FROM user_activities
		 WHERE user_id = $1
		 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.UserActivity
	for rows.Next() {
		var (
			a        model.UserActivity
			snapshot []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &snapshot, &a.Status, &a.JoinDate, &a.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if err := json.Unmarshal(snapshot, &a.Event); err != nil {
			return nil, fmt.Errorf("failed to decode event snapshot: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

// DeleteByUserID はユーザーの参加記録を全て削除する。
func (r *PostgresActivityRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_activities WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user activities: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
