package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const mirrorTTL = 2 * time.Minute

// Mirror publishes presence state to Redis so sibling processes can see it.
// Best-effort: the process-local Registry stays authoritative for this
// process's notification decisions, and mirror failures are logged only.
type Mirror struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

// NewMirror constructs a Mirror. A nil client yields a disabled mirror.
func NewMirror(client *redis.Client, prefix string, log *zap.SugaredLogger) *Mirror {
	return &Mirror{client: client, prefix: prefix, log: log}
}

func (m *Mirror) key(userID int64) string {
	return fmt.Sprintf("%s:presence:%d", m.prefix, userID)
}

// Online marks the user online with a TTL refreshed by heartbeats.
func (m *Mirror) Online(ctx context.Context, userID int64) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Set(ctx, m.key(userID), "online", mirrorTTL).Err(); err != nil {
		m.log.Warnw("presence mirror set failed", "user_id", userID, "error", err)
	}
}

// Refresh extends the TTL; called from the heartbeat path.
func (m *Mirror) Refresh(ctx context.Context, userID int64) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Expire(ctx, m.key(userID), mirrorTTL).Err(); err != nil {
		m.log.Warnw("presence mirror refresh failed", "user_id", userID, "error", err)
	}
}

// Offline clears the user's entry once their last connection drops.
func (m *Mirror) Offline(ctx context.Context, userID int64) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Del(ctx, m.key(userID)).Err(); err != nil {
		m.log.Warnw("presence mirror delete failed", "user_id", userID, "error", err)
	}
}
