package accounts

import "github.com/baechuer/real-time-ressys/services/account-service/internal/domain"

// Signal is the classification of a replica store error.
type Signal int

const (
	SignalNone Signal = iota
	// SignalIsolated: the store's breaker is refusing requests for a cooldown.
	SignalIsolated
	// SignalSchemaMissing: the store's table has not been migrated.
	SignalSchemaMissing
	SignalOther
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalIsolated:
		return "isolated"
	case SignalSchemaMissing:
		return "schema_missing"
	default:
		return "other"
	}
}

// Expected reports whether the condition is a known degraded mode. Expected
// signals are not retried and are logged quietly.
func (s Signal) Expected() bool {
	return s == SignalIsolated || s == SignalSchemaMissing
}

// Classify maps a store error to a Signal.
func Classify(err error) Signal {
	if err == nil {
		return SignalNone
	}
	switch domain.CodeOf(err) {
	case domain.CodeStoreIsolated:
		return SignalIsolated
	case domain.CodeSchemaMissing:
		return SignalSchemaMissing
	default:
		return SignalOther
	}
}

func retryable(err error) bool {
	return !Classify(err).Expected()
}
