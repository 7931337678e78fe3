package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"pitchside/config"
	"pitchside/internal/domain"
	"pitchside/internal/models"
	"pitchside/internal/observability"
	"pitchside/internal/reconcile"
	"pitchside/internal/repository"
	"pitchside/internal/service"
	"pitchside/pkg/gateway"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GatewayWebhookHandler receives payment-gateway deliveries. Response codes
// are the retry contract: 200 stops retries (processed or intentionally
// no-op'd), 400 stops retries (malformed forever), 500 invites a retry
// (storage error, nothing was committed).
type GatewayWebhookHandler struct {
	resolver *reconcile.Resolver
	engine   *reconcile.Engine
	events   repository.WebhookEventStore
	alerts   *service.AlertService
	metrics  *observability.Metrics
	cfg      *config.GatewayConfig
	log      *zap.Logger
}

func NewGatewayWebhookHandler(
	resolver *reconcile.Resolver,
	engine *reconcile.Engine,
	events repository.WebhookEventStore,
	alerts *service.AlertService,
	metrics *observability.Metrics,
	cfg *config.GatewayConfig,
	log *zap.Logger,
) *GatewayWebhookHandler {
	return &GatewayWebhookHandler{
		resolver: resolver,
		engine:   engine,
		events:   events,
		alerts:   alerts,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
}

func (h *GatewayWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	if !h.cfg.SignatureBypass {
		if !gateway.VerifySignature(body, c.GetHeader(gateway.SignatureHeader), h.cfg.WebhookSecret) {
			h.alerts.SignatureFailure(c.ClientIP())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
	}

	ev, err := gateway.Parse(body)
	if err != nil {
		h.log.Warn("unparsable webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	outcome := h.process(c, ev)
	h.metrics.EventsProcessed.WithLabelValues(ev.Type, outcome).Inc()
	// Unknown event types are acknowledged without touching storage at all.
	if ev.Kind != gateway.EventUnhandled {
		h.audit(c, ev, outcome)
	}

	switch outcome {
	case domain.AuditStorageError:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
	}
}

func (h *GatewayWebhookHandler) process(c *gin.Context, ev *gateway.Event) string {
	if ev.Kind == gateway.EventUnhandled {
		return domain.AuditUnhandled
	}

	ctx := c.Request.Context()
	p, err := h.resolver.Resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, reconcile.ErrPaymentNotFound) {
			h.alerts.ResolutionMiss(ev.Type, ev.GatewayPaymentID, ev.CorrelationToken)
			return domain.AuditNotFound
		}
		h.log.Error("payment resolution failed", zap.Error(err), zap.String("event_type", ev.Type))
		return domain.AuditStorageError
	}

	outcome, err := h.engine.Apply(ctx, p, ev)
	if err != nil {
		h.log.Error("reconciliation failed", zap.Error(err), zap.Uint("payment_id", p.ID))
		return domain.AuditStorageError
	}
	switch outcome {
	case reconcile.OutcomeApplied:
		return domain.AuditApplied
	case reconcile.OutcomeAlreadyApplied:
		return domain.AuditAlreadyApplied
	case reconcile.OutcomeConflict:
		return domain.AuditConflict
	default:
		return domain.AuditRecorded
	}
}

// audit appends the delivery to webhook_events. Best effort: a failed audit
// write must not turn an applied transition into a gateway retry.
func (h *GatewayWebhookHandler) audit(c *gin.Context, ev *gateway.Event, outcome string) {
	e := &models.WebhookEvent{
		EventType:        ev.Type,
		GatewayPaymentID: ev.GatewayPaymentID,
		CorrelationToken: ev.CorrelationToken,
		RawBody:          string(ev.Raw),
		Outcome:          outcome,
		ReceivedAt:       time.Now(),
	}
	if err := h.events.Append(c.Request.Context(), e); err != nil {
		h.log.Error("webhook audit append failed", zap.Error(err))
	}
}
