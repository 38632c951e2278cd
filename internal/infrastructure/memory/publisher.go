package memory

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/accounts"
)

// LogSink reports abandoned replica syncs to the log only. Used when no broker
// is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(lg zerolog.Logger) *LogSink { return &LogSink{log: lg} }

func (p *LogSink) ReplicaSyncAbandoned(ctx context.Context, f accounts.SyncFailure) error {
	p.log.Warn().
		Str("user_id", f.UserID).
		Str("op", f.Op).
		Int("attempts", f.Attempts).
		Str("reason", f.Reason).
		Msg("replica sync abandoned")
	return nil
}
