package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/sporthub/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var interests []string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, profile_image_url, interests, join_date, total_events_joined, is_organizer
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.ProfileImageURL, pq.Array(&interests),
		&user.JoinDate, &user.TotalEventsJoined, &user.IsOrganizer)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.Interests = make([]model.SportCategory, len(interests))
	for i, s := range interests {
		user.Interests[i] = model.SportCategory(s)
	}
	return user, nil
}

// Save はユーザーを丸ごと保存する。既存の場合は全カラムを差し替える。
func (r *PostgresUserRepo) Save(ctx context.Context, user *model.User) error {
	interests := make([]string, len(user.Interests))
	for i, c := range user.Interests {
		interests[i] = string(c)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, profile_image_url, interests, join_date, total_events_joined, is_organizer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			profile_image_url = EXCLUDED.profile_image_url,
			interests = EXCLUDED.interests,
			join_date = EXCLUDED.join_date,
			total_events_joined = EXCLUDED.total_events_joined,
			is_organizer = EXCLUDED.is_organizer`,
		user.ID, user.Name, user.Email, user.ProfileImageURL, pq.Array(interests),
		user.JoinDate, user.TotalEventsJoined, user.IsOrganizer,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// IncrementEventsJoined は参加イベント数を1増やす。
// 読み取りを挟まない単一のUPDATEで行うため、同時参加でも加算は失われない。
func (r *PostgresUserRepo) IncrementEventsJoined(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET total_events_joined = total_events_joined + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment events joined: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。存在しない場合もエラーにしない。
// 関連するuser_activitiesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
