// Package config holds process-wide settings sourced from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults used when the environment does not override them
const (
	DefaultDelayPeriod     = 7 * 24 * time.Hour
	DefaultTestDelayPeriod = 20 * time.Second
	DefaultInvitationTTL   = 7 * 24 * time.Hour
	DefaultPort            = "8888"
)

// MongoURL is the connection string for the recovery data store
var MongoURL = os.Getenv("RECOVERY_MONGO_URL")

// Port is the HTTP listen port
var Port = envOr("RECOVERY_PORT", DefaultPort)

// DelayPeriod is the Delay-and-Notify waiting period for regular accounts
var DelayPeriod = envDuration("RECOVERY_DELAY_PERIOD_SEC", DefaultDelayPeriod)

// TestDelayPeriod is the shortened waiting period for test accounts
var TestDelayPeriod = envDuration("RECOVERY_TEST_DELAY_PERIOD_SEC", DefaultTestDelayPeriod)

// InvitationTTL is how long a trusted contact invitation code stays valid
var InvitationTTL = envDuration("RECOVERY_INVITATION_TTL_SEC", DefaultInvitationTTL)

// SocialRecoveryEnabled gates the trusted contact and social challenge routes
var SocialRecoveryEnabled = envOr("RECOVERY_SOCIAL_ENABLED", "true") == "true"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); len(v) > 0 {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); len(v) > 0 {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
