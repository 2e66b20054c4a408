package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tickdown/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates basic profile info.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID, chatID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"chat_id":    chatID,
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID: telegramID,
			ChatID:     chatID,
			FirstName:  firstName,
			LastName:   lastName,
			Username:   username,
			Theme:      string(model.ThemeSystem),
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOwner returns the first registered user, the chat the bot is bound to.
func (r *UserRepository) FindOwner(ctx context.Context) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Order("id ASC").First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find owner: %w", err)
	}
}

func (r *UserRepository) SetTheme(ctx context.Context, user *model.User, theme string) error {
	user.Theme = theme
	if err := r.db.WithContext(ctx).Model(user).Update("theme", theme).Error; err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}

// MarkAdvisorySent records that the one-time notification advisory went out.
func (r *UserRepository) MarkAdvisorySent(ctx context.Context, user *model.User, at time.Time) error {
	user.AdvisorySentAt = &at
	if err := r.db.WithContext(ctx).Model(user).Update("advisory_sent_at", at).Error; err != nil {
		return fmt.Errorf("mark advisory: %w", err)
	}
	return nil
}
