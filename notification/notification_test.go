package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/delaynotify"
)

type memNotificationStore struct {
	queued []*Notification
}

func (m *memNotificationStore) EnqueueNotification(_ context.Context, n *Notification) error {
	m.queued = append(m.queued, n)
	return nil
}

// TestRecoveryPending tests the recovery-pending payload
func TestRecoveryPending(t *testing.T) {
	store := &memNotificationStore{}
	service := NewService(store)

	delayEnd := time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC)
	err := service.RecoveryPending(context.Background(), &delaynotify.WalletRecovery{
		AccountID:    "acct-1",
		RecoveryType: delaynotify.TypeDelayAndNotify,
		Status:       delaynotify.StatusPending,
		Requirements: delaynotify.Requirements{
			LostFactor:   account.FactorHardware,
			DelayEndTime: delayEnd,
		},
	})
	require.NoError(t, err)
	require.Len(t, store.queued, 1)

	queued := store.queued[0]
	assert.NotEmpty(t, queued.ID)
	assert.Equal(t, "acct-1", queued.AccountID)
	assert.Equal(t, TypeRecoveryPending, queued.Type)

	payload := queued.Payload
	assert.Equal(t, TypeRecoveryPending, gjson.Get(payload, "notification_type").String())
	assert.Equal(t, "acct-1", gjson.Get(payload, "account_id").String())
	assert.Equal(t, "hardware", gjson.Get(payload, "lost_factor").String())
	assert.Equal(t, "2026-09-04T12:00:00Z", gjson.Get(payload, "delay_end_time").String())
}

// TestTerminalNotices tests the canceled and completed payloads
func TestTerminalNotices(t *testing.T) {
	store := &memNotificationStore{}
	service := NewService(store)
	ctx := context.Background()

	require.NoError(t, service.RecoveryCanceled(ctx, "acct-1"))
	require.NoError(t, service.RecoveryCompleted(ctx, "acct-1"))
	require.Len(t, store.queued, 2)

	assert.Equal(t, TypeRecoveryCanceled, store.queued[0].Type)
	assert.Equal(t, TypeRecoveryCompleted, store.queued[1].Type)
	for _, n := range store.queued {
		assert.Equal(t, "acct-1", gjson.Get(n.Payload, "account_id").String())
	}
}

// TestSendVerificationCode tests the verification code payload
func TestSendVerificationCode(t *testing.T) {
	store := &memNotificationStore{}
	service := NewService(store)

	touchpoint := account.Touchpoint{
		ID:     "tp-email",
		Type:   account.TouchpointEmail,
		Value:  "a@example.com",
		Active: true,
	}
	require.NoError(t, service.SendVerificationCode(context.Background(), "acct-1", touchpoint, "123456"))
	require.Len(t, store.queued, 1)

	payload := store.queued[0].Payload
	assert.Equal(t, TypeVerificationCode, gjson.Get(payload, "notification_type").String())
	assert.Equal(t, "email", gjson.Get(payload, "touchpoint_type").String())
	assert.Equal(t, "a@example.com", gjson.Get(payload, "touchpoint_value").String())
	assert.Equal(t, "123456", gjson.Get(payload, "code").String())
}
