package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresPreferenceStore はPostgreSQLを使用したクライアント別キーバリュー保存領域。
type PostgresPreferenceStore struct {
	db *sql.DB
}

// NewPostgresPreferenceStore はPostgresPreferenceStoreを生成する。
func NewPostgresPreferenceStore(db *sql.DB) *PostgresPreferenceStore {
	return &PostgresPreferenceStore{db: db}
}

// Get は値を取得する。存在しない場合はfound=falseを返す。
func (s *PostgresPreferenceStore) Get(ctx context.Context, clientID, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_preferences WHERE client_id = $1 AND key = $2`,
		clientID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preference: %w", err)
	}
	return value, true, nil
}

// Set は値を保存する。
func (s *PostgresPreferenceStore) Set(ctx context.Context, clientID, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_preferences (client_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

// Delete は値を削除する。
func (s *PostgresPreferenceStore) Delete(ctx context.Context, clientID, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM client_preferences WHERE client_id = $1 AND key = $2`,
		clientID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

// DeleteClient はクライアントの全ての値を削除する。
func (s *PostgresPreferenceStore) DeleteClient(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM client_preferences WHERE client_id = $1`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete client preferences: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PreferenceStore = (*PostgresPreferenceStore)(nil)
