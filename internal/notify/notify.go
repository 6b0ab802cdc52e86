// Package notify fans alerts out over redis pub/sub, one channel per
// recipient. Dashboards subscribe to their own channel; anything that
// cannot be delivered is logged and dropped, never bubbled back into
// the transition that produced it.
package notify

import (
	"context"
	"encoding/json"

	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/belimuno/marketplace/internal/domain"
)

type Redis struct {
	rdb *r.Client
	log *zap.Logger
}

func NewRedis(rdb *r.Client, log *zap.Logger) *Redis {
	return &Redis{rdb: rdb, log: log}
}

func channel(n domain.Notification) string {
	return "notify:" + n.RecipientID.String()
}

func (p *Redis) Notify(ctx context.Context, n domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.log.Error("marshal notification", zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, channel(n), payload).Err(); err != nil {
		p.log.Warn("notification dropped",
			zap.String("event", string(n.Event)),
			zap.String("recipient", n.RecipientID.String()),
			zap.Error(err))
	}
}

// Noop discards notifications; used when redis is not configured.
type Noop struct{}

func (Noop) Notify(context.Context, domain.Notification) {}
