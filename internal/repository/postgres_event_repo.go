package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/sporthub/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventColumns = `id, title, description, category, starts_at, time_label, location,
	latitude, longitude, price, is_free, max_participants, current_participants,
	organizer, image_url, is_indoor, age_group, is_family_friendly, contact_info, requirements`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent は1行分のイベントを読み取る。
func scanEvent(s rowScanner) (*model.Event, error) {
	var (
		e            model.Event
		lat, lng     sql.NullFloat64
		organizerRaw []byte
	)
	err := s.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.Date, &e.TimeLabel, &e.Location,
		&lat, &lng, &e.Price, &e.IsFree, &e.MaxParticipants, &e.CurrentParticipants,
		&organizerRaw, &e.ImageURL, &e.IsIndoor, &e.AgeGroup, &e.IsFamilyFriendly, &e.ContactInfo, &e.Requirements,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		e.Coordinates = &model.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if err := json.Unmarshal(organizerRaw, &e.Organizer); err != nil {
		return nil, fmt.Errorf("failed to decode organizer: %w", err)
	}
	return &e, nil
}

// eventArgs はINSERT/UPDATE用のパラメータ列を組み立てる。
func eventArgs(e *model.Event) ([]any, error) {
	organizer, err := json.Marshal(e.Organizer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode organizer: %w", err)
	}
	var lat, lng sql.NullFloat64
	if e.Coordinates != nil {
		lat = sql.NullFloat64{Float64: e.Coordinates.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: e.Coordinates.Longitude, Valid: true}
	}
	return []any{
		e.ID, e.Title, e.Description, string(e.Category), e.Date, e.TimeLabel, e.Location,
		lat, lng, e.Price, e.IsFree, e.MaxParticipants, e.CurrentParticipants,
		organizer, e.ImageURL, e.IsIndoor, string(e.AgeGroup), e.IsFamilyFriendly, e.ContactInfo, e.Requirements,
	}, nil
}

// List は全イベントを作成順で返す。
func (r *PostgresEventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event by ID: %w", err)
	}
	return e, nil
}

// Create はイベントを作成する。同じIDが既にある場合はErrDuplicateを返す。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.Event) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		args...,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Upsert はIDが一致するイベントを差し替え、存在しなければ追加する。
func (r *PostgresEventRepo) Upsert(ctx context.Context, event *model.Event) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			starts_at = EXCLUDED.starts_at,
			time_label = EXCLUDED.time_label,
			location = EXCLUDED.location,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			price = EXCLUDED.price,
			is_free = EXCLUDED.is_free,
			max_participants = EXCLUDED.max_participants,
			current_participants = EXCLUDED.current_participants,
			organizer = EXCLUDED.organizer,
			image_url = EXCLUDED.image_url,
			is_indoor = EXCLUDED.is_indoor,
			age_group = EXCLUDED.age_group,
			is_family_friendly = EXCLUDED.is_family_friendly,
			contact_info = EXCLUDED.contact_info,
			requirements = EXCLUDED.requirements`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

// UpdateByID は対象行をFOR UPDATEでロックし、mutateの結果で差し替える。
func (r *PostgresEventRepo) UpdateByID(ctx context.Context, id string, mutate EventMutator) (*model.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	next, err := mutate(*current)
	if err != nil {
		return nil, err
	}
	next.ID = id

	args, err := eventArgs(&next)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE events SET
			title = $2, description = $3, category = $4, starts_at = $5, time_label = $6, location = $7,
			latitude = $8, longitude = $9, price = $10, is_free = $11, max_participants = $12,
			current_participants = $13, organizer = $14, image_url = $15, is_indoor = $16,
			age_group = $17, is_family_friendly = $18, contact_info = $19, requirements = $20
		 WHERE id = $1`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &next, nil
}

// DeleteEndedBefore は開催日時がcutoffより前のイベントを削除する。
func (r *PostgresEventRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE starts_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ended events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Count はイベント件数を返す。
func (r *PostgresEventRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
