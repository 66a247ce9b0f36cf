// Package user はプロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/sporthub/internal/backend"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/repository"
	"github.com/hitoshi/sporthub/internal/security"
)

// ActivityDeleter は参加記録の一括削除インターフェース。
type ActivityDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// ClientPreferenceDeleter はクライアント保存領域の一括削除インターフェース。
type ClientPreferenceDeleter interface {
	DeleteClient(ctx context.Context, clientID string) error
}

// MediaChecker はアバター画像URLの検査インターフェース。
type MediaChecker interface {
	Check(ctx context.Context, rawURL string) error
}

// ProfileInput はプロフィール編集フォームの内容。レコード全体を差し替える。
type ProfileInput struct {
	Name            string
	Email           string
	ProfileImageURL string
	Interests       []model.SportCategory
	IsOrganizer     bool
}

// Service はプロフィール管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	activities  ActivityDeleter
	preferences ClientPreferenceDeleter
	backend     backend.Client
	sanitizer   security.TextSanitizerService
	media       MediaChecker
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	activities ActivityDeleter,
	preferences ClientPreferenceDeleter,
	client backend.Client,
	sanitizer security.TextSanitizerService,
	media MediaChecker,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		userRepo:    userRepo,
		activities:  activities,
		preferences: preferences,
		backend:     client,
		sanitizer:   sanitizer,
		media:       media,
		now:         now,
	}
}

// GetProfile はユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// EnsureProfile は認証ユーザーに対応するプロフィールがなければ作成する。
// 作成した場合はcreated=trueを返す。表示名は上限の文字数で切り詰める。
func (s *Service) EnsureProfile(ctx context.Context, au model.AuthUser) (*model.User, bool, error) {
	existing, err := s.userRepo.FindByID(ctx, au.ID)
	if err != nil {
		return nil, false, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	if utf8.RuneCountInString(au.Email) > model.MaxEmailLength {
		return nil, false, model.NewInvalidProfileError(fmt.Sprintf("email は%d文字以内で指定してください", model.MaxEmailLength))
	}

	user := &model.User{
		ID:              au.ID,
		Name:            truncateRunes(au.Name, model.MaxNameLength),
		Email:           au.Email,
		ProfileImageURL: au.ProfileImageURL,
		Interests:       []model.SportCategory{},
		JoinDate:        s.now(),
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, false, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	if _, err := s.backend.CreateUser(ctx, *user); err != nil {
		slog.Warn("backend create user failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("profile created",
		slog.String("user_id", user.ID),
		slog.String("provider", string(au.AuthProvider)),
	)
	return user, true, nil
}

// UpdateProfile はプロフィールを差し替える。
// ID・登録日・参加数は既存の値を引き継ぐ。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	name := s.sanitizer.Sanitize(in.Name)
	if name == "" {
		return nil, model.NewInvalidProfileError("name は必須です")
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("name は%d文字以内で指定してください", model.MaxNameLength))
	}
	email := strings.TrimSpace(in.Email)
	if !strings.Contains(email, "@") {
		return nil, model.NewInvalidProfileError("email の形式が不正です")
	}
	if utf8.RuneCountInString(email) > model.MaxEmailLength {
		return nil, model.NewInvalidProfileError(fmt.Sprintf("email は%d文字以内で指定してください", model.MaxEmailLength))
	}
	interests, err := normalizeInterests(in.Interests)
	if err != nil {
		return nil, err
	}
	imageURL := strings.TrimSpace(in.ProfileImageURL)
	if err := s.media.Check(ctx, imageURL); err != nil {
		return nil, err
	}

	updated := &model.User{
		ID:                current.ID,
		Name:              name,
		Email:             email,
		ProfileImageURL:   imageURL,
		Interests:         interests,
		JoinDate:          current.JoinDate,
		TotalEventsJoined: current.TotalEventsJoined,
		IsOrganizer:       in.IsOrganizer,
	}
	if err := s.userRepo.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("ユーザーの保存に失敗しました: %w", err)
	}
	if _, err := s.backend.UpdateUser(ctx, *updated); err != nil {
		slog.Warn("backend update user failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return updated, nil
}

// truncateRunes はsを先頭からn文字までに切り詰める。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// normalizeInterests は未定義のカテゴリを拒否し、重複を取り除く。
func normalizeInterests(in []model.SportCategory) ([]model.SportCategory, error) {
	out := make([]model.SportCategory, 0, len(in))
	seen := make(map[model.SportCategory]bool, len(in))
	for _, c := range in {
		if _, err := model.ParseSportCategory(string(c)); err != nil {
			return nil, model.NewInvalidProfileError(err.Error())
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: user_activities → users → client_preferences
// イベントは共有カタログとして残す。
func (s *Service) Withdraw(ctx context.Context, userID, clientID string) error {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 参加記録を削除
	if s.activities != nil {
		if err := s.activities.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("参加記録の削除に失敗しました: %w", err)
		}
	}

	// 2. プロフィールを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	// 3. クライアントの保存領域を削除
	if s.preferences != nil && clientID != "" {
		if err := s.preferences.DeleteClient(ctx, clientID); err != nil {
			return fmt.Errorf("クライアント設定の削除に失敗しました: %w", err)
		}
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
