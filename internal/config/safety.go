package config

import (
	"time"
)

// SafetyConfig holds the tunables of the check-in scheduler and escalation
// pipeline. Tick granularity is a load knob, not a correctness requirement.
type SafetyConfig struct {
	CheckInInterval           time.Duration `yaml:"check_in_interval"`
	GracePeriod               time.Duration `yaml:"grace_period"`
	SchedulerTick             time.Duration `yaml:"scheduler_tick"`
	SessionTTL                time.Duration `yaml:"session_ttl"`
	GrantTTL                  time.Duration `yaml:"grant_ttl"`
	MaxHistoryPoints          int           `yaml:"max_history_points"`
	NotificationRetryAttempts int           `yaml:"notification_retry_attempts"`
	EscalationDedupTTL        time.Duration `yaml:"escalation_dedup_ttl"`
}

func loadSafetyConfig() *SafetyConfig {
	return &SafetyConfig{
		CheckInInterval:           getEnvAsDuration("SAFETY_CHECK_IN_INTERVAL", 5*time.Minute),
		GracePeriod:               getEnvAsDuration("SAFETY_GRACE_PERIOD", 2*time.Minute),
		SchedulerTick:             getEnvAsDuration("SAFETY_SCHEDULER_TICK", 5*time.Second),
		SessionTTL:                getEnvAsDuration("SAFETY_SESSION_TTL", 4*time.Hour),
		GrantTTL:                  getEnvAsDuration("SAFETY_GRANT_TTL", 4*time.Hour),
		MaxHistoryPoints:          getEnvAsInt("SAFETY_MAX_HISTORY_POINTS", 500),
		NotificationRetryAttempts: getEnvAsInt("NOTIFICATION_RETRY_ATTEMPTS", 3),
		EscalationDedupTTL:        getEnvAsDuration("ESCALATION_DEDUP_TTL", 24*time.Hour),
	}
}
