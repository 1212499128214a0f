// Package account holds the account data model consumed by the recovery core.
package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAccountNotFound is returned when no account exists for the given id
	ErrAccountNotFound = errors.New("account not found")
	// ErrTouchpointNotFound is returned when a touchpoint id does not belong to the account
	ErrTouchpointNotFound = errors.New("touchpoint not found")
	// ErrTouchpointInactive is returned when the touchpoint exists but is not active
	ErrTouchpointInactive = errors.New("touchpoint is not active")
	// ErrTouchpointTypeMismatch is returned when the touchpoint cannot receive a verification code
	ErrTouchpointTypeMismatch = errors.New("touchpoint type cannot receive verification codes")
)

// Factor is one of the authentication factors protecting an account
type Factor string

// Authentication factors
const (
	FactorApp      Factor = "app"
	FactorHardware Factor = "hardware"
)

// Touchpoint types
const (
	TouchpointEmail = "email"
	TouchpointPhone = "phone"
	TouchpointPush  = "push"
)

// AuthKeys is the set of active authentication pubkeys for an account
type AuthKeys struct {
	AppAuthPubkey      string `json:"app_auth_pubkey" bson:"appAuthPubkey"`
	HardwareAuthPubkey string `json:"hardware_auth_pubkey" bson:"hardwareAuthPubkey"`
	// RecoveryAuthPubkey is empty for accounts created before the recovery key rollout
	RecoveryAuthPubkey string `json:"recovery_auth_pubkey,omitempty" bson:"recoveryAuthPubkey,omitempty"`
}

// Touchpoint is a contact channel registered on the account
type Touchpoint struct {
	ID     string `json:"id" bson:"id"`
	Type   string `json:"type" bson:"type"`
	Value  string `json:"value" bson:"value"`
	Active bool   `json:"active" bson:"active"`
}

// Account is a customer account as seen by the recovery core
type Account struct {
	ID            string       `json:"account_id" bson:"_id"`
	AuthKeys      AuthKeys     `json:"auth_keys" bson:"authKeys"`
	Touchpoints   []Touchpoint `json:"touchpoints,omitempty" bson:"touchpoints,omitempty"`
	IsTestAccount bool         `json:"is_test_account" bson:"isTestAccount"`
	CreatedAt     time.Time    `json:"created_at" bson:"createdAt"`
}

// TouchpointByID returns the touchpoint with the given id, if registered
func (a *Account) TouchpointByID(id string) (*Touchpoint, error) {
	for i := range a.Touchpoints {
		if a.Touchpoints[i].ID == id {
			return &a.Touchpoints[i], nil
		}
	}
	return nil, ErrTouchpointNotFound
}

// Service is the account collaborator the recovery core depends on
type Service interface {

	// FetchAccount loads an account by id, failing with ErrAccountNotFound
	FetchAccount(ctx context.Context, accountID string) (*Account, error)

	// CreateAndRotateAuthKeys activates a new keyset for the account
	CreateAndRotateAuthKeys(ctx context.Context, accountID string, keys AuthKeys) error

	// ClearPushTouchpoints drops push touchpoints after a key rotation so stale
	// devices stop receiving account notifications
	ClearPushTouchpoints(ctx context.Context, accountID string) error
}
