package worker

import (
	"context"
	"time"

	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/pkg/logger"
	"github.com/medichain/medichain-api/pkg/messaging"
	"github.com/medichain/medichain-api/pkg/metrics"
)

// OrphanSource yields local identities whose on-chain registration never
// confirmed. Implemented by the registration service.
type OrphanSource interface {
	FindOrphanedIdentities(ctx context.Context) ([]*model.OrphanedIdentity, error)
}

type ReconcilerConfig struct {
	PollInterval time.Duration
}

// Reconciler periodically scans for identities stranded by the
// local-write-then-chain-call ordering and surfaces them to operators: an
// error-level log line plus a message on the reconciliation channel.
type Reconciler struct {
	source  OrphanSource
	broker  messaging.Broker
	config  ReconcilerConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewReconciler(
	source OrphanSource,
	broker messaging.Broker,
	config ReconcilerConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Reconciler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}

	return &Reconciler{
		source:  source,
		broker:  broker,
		config:  config,
		logger:  log,
		metrics: m,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("starting reconciliation worker")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down reconciliation worker")
			return
		case <-ticker.C:
			if err := r.scan(ctx); err != nil {
				r.logger.Error(err, "reconciliation scan failed")
			}
		}
	}
}

func (r *Reconciler) scan(ctx context.Context) error {
	orphans, err := r.source.FindOrphanedIdentities(ctx)
	if err != nil {
		return err
	}

	for _, orphan := range orphans {
		r.logger.Error(nil, "identity has no confirmed registration event",
			"user_id", orphan.User.ID.String(),
			"wallet", orphan.User.Wallet,
			"reason", orphan.Reason,
		)
		if r.metrics != nil {
			r.metrics.OrphansFlagged.Inc()
		}
		if r.broker != nil {
			msg := messaging.Message{Type: "identity_orphaned", Payload: orphan}
			if err := r.broker.Publish(ctx, messaging.ChannelReconciliationOrphans, msg); err != nil {
				r.logger.Error(err, "failed to publish orphan alert")
			}
		}
	}

	return nil
}
