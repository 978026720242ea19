package cart

import (
	"github.com/fjod/go_storefront/internal/metrics"
	"go.uber.org/zap"
)

// SessionLogger reports session churn to logs and the active sessions gauge.
type SessionLogger struct {
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewSessionLogger(log *zap.Logger, m *metrics.Metrics) *SessionLogger {
	return &SessionLogger{log: log, metrics: m}
}

func (o *SessionLogger) SessionCreated(id string, active int) {
	o.metrics.SetActiveSessions(active)
	o.log.Debug("cart_session_created", zap.String("session_id", id), zap.Int("active", active))
}

func (o *SessionLogger) SessionsExpired(ids []string, active int) {
	o.metrics.SetActiveSessions(active)
	o.log.Info("cart_sessions_expired", zap.Int("expired", len(ids)), zap.Int("active", active))
}

// MutationCounter counts effective cart mutations by operation.
func MutationCounter(m *metrics.Metrics) Listener {
	return func(op Op, _ *Store) {
		m.CartMutation(string(op))
	}
}
