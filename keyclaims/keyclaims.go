// Package keyclaims derives the logical actor behind a request from its
// proof-of-possession claims and verifies key possession signatures.
package keyclaims

import (
	"errors"

	"github.com/bitcoinschema/go-bitcoin"
)

var (
	// ErrNoActor is returned when neither the app nor the hardware key signed
	ErrNoActor = errors.New("no authentication key signed the access token")
	// ErrAmbiguousActor is returned when a strategy requires exactly one signer
	ErrAmbiguousActor = errors.New("both authentication keys signed the access token")
	// ErrInvalidSignature is returned when a possession signature does not verify
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrUnknownStrategy is returned for an unrecognized actor strategy
	ErrUnknownStrategy = errors.New("unknown actor strategy")
)

// Actor is the logical signer behind a request
type Actor string

// Actors
const (
	ActorApp      Actor = "app"
	ActorHardware Actor = "hardware"
)

// ToActorStrategy selects how signer claims collapse into a single actor
type ToActorStrategy int

// Strategies
const (
	// ExclusiveOr requires exactly one of the app or hardware keys to have signed
	ExclusiveOr ToActorStrategy = iota
)

// KeyClaims asserts which account keys signed the presented access token
type KeyClaims struct {
	AccountID      string
	AppSigned      bool
	HardwareSigned bool
}

// ToActor collapses the claims into a single actor under the given strategy
func (k KeyClaims) ToActor(strategy ToActorStrategy) (Actor, error) {
	switch strategy {
	case ExclusiveOr:
		if k.AppSigned && k.HardwareSigned {
			return "", ErrAmbiguousActor
		}
		if k.AppSigned {
			return ActorApp, nil
		}
		if k.HardwareSigned {
			return ActorHardware, nil
		}
		return "", ErrNoActor
	}
	return "", ErrUnknownStrategy
}

// CheckSignature verifies a Bitcoin signed message over the given payload
// against the compressed secp256k1 pubkey that is claimed to have produced it.
func CheckSignature(message, signature, pubKey string) error {
	address, err := bitcoin.GetAddressFromPubKeyString(pubKey, true)
	if err != nil {
		return ErrInvalidSignature
	}
	if err = bitcoin.VerifyMessage(address.String(), signature, message); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
