package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/model"
)

// SaveSubscription creates or replaces a push subscription keyed by endpoint.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if strings.TrimSpace(sub.Endpoint) == "" || sub.P256DH == "" || sub.Auth == "" {
		return apperr.Validation("endpoint, p256dh and auth are required")
	}
	var u model.User
	if err := s.db.WithContext(ctx).Select("id").First(&u, sub.UserID).Error; err != nil {
		return lookup(err, "user %d", sub.UserID)
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// Subscription returns the subscription for endpoint.
func (s *gormStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, lookup(err, "subscription")
	}
	return &sub, nil
}

// SubscriptionsForUser returns every push endpoint registered by the user.
func (s *gormStore) SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscriptions of user %d: %w", userID, err)
	}
	return subs, nil
}

// DeleteSubscription removes a push subscription. Deleting a missing endpoint is not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
