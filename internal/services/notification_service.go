package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	apperrors "github.com/opsdesk/opsdesk/pkg/errors"
	"github.com/opsdesk/opsdesk/pkg/metrics"
)

// signalNotificationTitle is the fixed title for creation fan-out.
const signalNotificationTitle = "New signal"

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationService manages persisted in-app notifications and the
// signal-creation fan-out.
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// NotifyOnSignalCreated applies the creation fan-out rule. It must be
// invoked exactly once per signal creation: re-invoking duplicates
// notifications.
func (s *NotificationService) NotifyOnSignalCreated(ctx context.Context, signal *models.Signal, createdBy auth.Actor) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	return fanOutSignalCreated(s.db.WithContext(ctx), signal, createdBy)
}

// NotifyOnSignalCreatedTx runs the fan-out inside an already-open
// transaction so the notifications commit or roll back together with the
// signal insert and its history event.
func (s *NotificationService) NotifyOnSignalCreatedTx(tx *gorm.DB, signal *models.Signal, createdBy auth.Actor) ([]models.Notification, error) {
	if tx == nil {
		return nil, errors.New("notification service: tx is required")
	}
	return fanOutSignalCreated(tx, signal, createdBy)
}

// fanOutSignalCreated implements the rule:
//   - assignee set: one notification for that user only
//   - no assignee: one notification per active staff user, excluding the
//     creator, written as a single batch
func fanOutSignalCreated(tx *gorm.DB, signal *models.Signal, createdBy auth.Actor) ([]models.Notification, error) {
	if signal == nil || signal.ID == "" {
		return nil, errors.New("notification service: signal is required")
	}

	body := truncateRunes(signal.Body, models.NotificationBodyLimit)
	url, _ := models.DeepLink(models.KindSignal, signal.ID)

	build := func(userID string) models.Notification {
		return models.Notification{
			UserID:          userID,
			EntityKindValue: models.KindSignal,
			EntityIDValue:   signal.ID,
			Title:           signalNotificationTitle,
			Body:            body,
			URL:             url,
		}
	}

	if signal.AssignedToID != nil && *signal.AssignedToID != "" {
		notification := build(*signal.AssignedToID)
		if err := tx.Create(&notification).Error; err != nil {
			return nil, fmt.Errorf("notification service: create notification: %w", err)
		}
		metrics.NotificationsFannedOut.Inc()
		return []models.Notification{notification}, nil
	}

	query := tx.Model(&models.User{}).Where("is_staff = ? AND is_active = ?", true, true)
	if createdBy.UserID != "" {
		query = query.Where("id <> ?", createdBy.UserID)
	}

	var recipientIDs []string
	if err := query.Order("username").Pluck("id", &recipientIDs).Error; err != nil {
		return nil, fmt.Errorf("notification service: resolve staff recipients: %w", err)
	}
	if len(recipientIDs) == 0 {
		return nil, nil
	}

	batch := make([]models.Notification, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		batch = append(batch, build(id))
	}

	if err := tx.Create(&batch).Error; err != nil {
		return nil, fmt.Errorf("notification service: bulk create notifications: %w", err)
	}

	metrics.NotificationsFannedOut.Add(float64(len(batch)))
	return batch, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return rows, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// MarkRead flags a notification as read. ReadAt is set exactly once;
// marking an already-read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if notification.IsRead {
		return &notification, nil
	}

	// Guard in the update itself so a concurrent MarkRead cannot overwrite
	// the first read_at.
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&notification).
		Where("is_read = ?", false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if err := s.db.WithContext(ctx).First(&notification, "id = ?", notification.ID).Error; err != nil {
			return nil, fmt.Errorf("notification service: reload notification: %w", err)
		}
		return &notification, nil
	}

	notification.IsRead = true
	notification.ReadAt = &now
	return &notification, nil
}

// MarkAllRead marks every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}
	return nil
}
