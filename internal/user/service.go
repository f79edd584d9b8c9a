// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/moodlens/internal/model"
	"github.com/hitoshi/moodlens/internal/repository"
)

// UserDataDeleter はユーザー単位の一括削除インターフェース。
// 気分・ジャーナル・インサイトの各リポジトリが満たす。
type UserDataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// CacheInvalidator はレポートキャッシュの無効化インターフェース。
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo       repository.UserRepository
	sessionRepo    repository.SessionRepository
	insightDeleter UserDataDeleter
	journalDeleter UserDataDeleter
	moodDeleter    UserDataDeleter
	invalidator    CacheInvalidator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	insightDeleter UserDataDeleter,
	journalDeleter UserDataDeleter,
	moodDeleter UserDataDeleter,
	invalidator CacheInvalidator,
) *Service {
	return &Service{
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		insightDeleter: insightDeleter,
		journalDeleter: journalDeleter,
		moodDeleter:    moodDeleter,
		invalidator:    invalidator,
	}
}

// Profile はログイン中ユーザーの情報を返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: insights → journal_entries → mood_entries → sessions → user
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	steps := []struct {
		deleter UserDataDeleter
		what    string
	}{
		{s.insightDeleter, "インサイト"},
		{s.journalDeleter, "ジャーナル"},
		{s.moodDeleter, "チェックイン"},
	}
	for _, step := range steps {
		if step.deleter == nil {
			continue
		}
		if err := step.deleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("%sの削除に失敗しました: %w", step.what, err)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateCache(ctx, userID); err != nil {
			slog.Warn("退会後のキャッシュ無効化に失敗",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
