package config

import (
	"os"
	"strings"
)

// ReleaseRejectedSettlements decides whether a rejected settlement still counts against the
// order's pending balance. Off by default: rejected settlements keep reserving their value.
//
// Set via env:
// - SETTLEMENT_RELEASE_REJECTED=true
func ReleaseRejectedSettlements() bool {
	return boolFromEnv("SETTLEMENT_RELEASE_REJECTED")
}

// AuditSinks lists the configured audit sink names.
//
// Set via env:
// - AUDIT_SINKS="db,pubsub,kafka,log" (default "db")
//
// Names are case-insensitive; unknown names are ignored by the caller.
func AuditSinks() []string {
	raw := strings.TrimSpace(os.Getenv("AUDIT_SINKS"))
	if raw == "" {
		return []string{"db"}
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// KafkaBrokers is the comma-separated KAFKA_BROKERS list.
func KafkaBrokers() []string {
	raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func KafkaAuditTopic() string {
	if v := strings.TrimSpace(os.Getenv("KAFKA_AUDIT_TOPIC")); v != "" {
		return v
	}
	return "ledger.audit"
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
