// Package notification builds and records the customer-facing notifications
// that accompany recovery state changes. Delivery itself (push/email/SMS)
// happens downstream off the recorded queue.
package notification

import (
	"context"
	"log"
	"time"

	"github.com/tidwall/sjson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/delaynotify"
)

// Notification types
const (
	TypeRecoveryPending   = "recovery_pending"
	TypeRecoveryCanceled  = "recovery_canceled"
	TypeRecoveryCompleted = "recovery_completed"
	TypeVerificationCode  = "verification_code"
)

// Notification is one queued outbound message
type Notification struct {
	ID        string    `bson:"_id"`
	AccountID string    `bson:"accountId"`
	Type      string    `bson:"type"`
	Payload   string    `bson:"payload"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Store persists queued notifications
type Store interface {
	EnqueueNotification(ctx context.Context, n *Notification) error
}

// Service builds notification payloads and queues them
type Service struct {
	store Store
}

// NewService returns a notification service over the given store
func NewService(store Store) *Service {
	return &Service{store: store}
}

const payloadTemplate = `{"notification_type":"","account_id":""}`

func (s *Service) enqueue(ctx context.Context, accountID, notificationType string, fields map[string]interface{}) error {
	payload, _ := sjson.Set(payloadTemplate, "notification_type", notificationType)
	payload, _ = sjson.Set(payload, "account_id", accountID)
	for key, value := range fields {
		var err error
		if payload, err = sjson.Set(payload, key, value); err != nil {
			return err
		}
	}

	n := &Notification{
		ID:        primitive.NewObjectID().Hex(),
		AccountID: accountID,
		Type:      notificationType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	log.Printf("queueing %s notification for %s", notificationType, accountID)
	return s.store.EnqueueNotification(ctx, n)
}

// RecoveryPending queues the notification series for a newly created recovery
func (s *Service) RecoveryPending(ctx context.Context, r *delaynotify.WalletRecovery) error {
	return s.enqueue(ctx, r.AccountID, TypeRecoveryPending, map[string]interface{}{
		"lost_factor":    string(r.Requirements.LostFactor),
		"delay_end_time": r.Requirements.DelayEndTime.UTC().Format(time.RFC3339),
	})
}

// RecoveryCanceled queues the cancellation notice
func (s *Service) RecoveryCanceled(ctx context.Context, accountID string) error {
	return s.enqueue(ctx, accountID, TypeRecoveryCanceled, nil)
}

// RecoveryCompleted queues the completion notice
func (s *Service) RecoveryCompleted(ctx context.Context, accountID string) error {
	return s.enqueue(ctx, accountID, TypeRecoveryCompleted, nil)
}

// SendVerificationCode queues a verification code for delivery over the
// given touchpoint
func (s *Service) SendVerificationCode(ctx context.Context, accountID string, touchpoint account.Touchpoint, code string) error {
	return s.enqueue(ctx, accountID, TypeVerificationCode, map[string]interface{}{
		"touchpoint_type":  touchpoint.Type,
		"touchpoint_value": touchpoint.Value,
		"code":             code,
	})
}
