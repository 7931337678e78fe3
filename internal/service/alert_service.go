package service

import (
	"sync"
	"time"

	"pitchside/internal/observability"
	"pitchside/internal/ws"

	"go.uber.org/zap"
)

// AlertService is the observability sink for reconciliation signals: it logs
// structured events, bumps metrics, and pushes transitions to the ops feed.
// Signature failures additionally get rate-based escalation, since a burst of
// bad signatures is a tampering signal rather than noise.
type AlertService struct {
	log     *zap.Logger
	metrics *observability.Metrics
	feed    *ws.Hub

	threshold int
	window    time.Duration
	mu        sync.Mutex
	failures  []time.Time
}

func NewAlertService(log *zap.Logger, metrics *observability.Metrics, feed *ws.Hub, threshold int, window time.Duration) *AlertService {
	return &AlertService{
		log:       log,
		metrics:   metrics,
		feed:      feed,
		threshold: threshold,
		window:    window,
	}
}

func (s *AlertService) SignatureFailure(clientIP string) {
	s.metrics.SignatureFailures.Inc()
	s.log.Warn("webhook signature verification failed", zap.String("client_ip", clientIP))
	if s.overThreshold() {
		s.log.Error("webhook signature failure rate exceeded threshold, possible tampering",
			zap.Int("threshold", s.threshold),
			zap.Duration("window", s.window),
		)
	}
}

func (s *AlertService) overThreshold() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-s.window)
	var recent []time.Time
	for _, t := range s.failures {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	s.failures = recent
	return len(recent) > s.threshold
}

func (s *AlertService) ResolutionMiss(eventType, gatewayID, token string) {
	s.metrics.ResolutionMisses.Inc()
	s.log.Error("no payment row for verified webhook event",
		zap.String("event_type", eventType),
		zap.String("gateway_payment_id", gatewayID),
		zap.String("correlation_token", token),
	)
}

func (s *AlertService) Conflict(paymentID uint, eventType, reason string) {
	s.log.Warn("event dropped as conflicting with payment state",
		zap.Uint("payment_id", paymentID),
		zap.String("event_type", eventType),
		zap.String("reason", reason),
	)
	s.feed.Broadcast(map[string]interface{}{
		"type":       "conflict",
		"payment_id": paymentID,
		"event":      eventType,
		"reason":     reason,
	})
}

func (s *AlertService) PartialReconciliation(paymentID, bookingID uint, err error) {
	s.metrics.PartialReconciliations.Inc()
	s.log.Error("payment updated but booking write failed, sweep will repair",
		zap.Uint("payment_id", paymentID),
		zap.Uint("booking_id", bookingID),
		zap.Error(err),
	)
	s.feed.Broadcast(map[string]interface{}{
		"type":       "partial_reconciliation",
		"payment_id": paymentID,
		"booking_id": bookingID,
	})
}

func (s *AlertService) TransitionApplied(paymentID uint, bookingID *uint, from, to string) {
	s.log.Info("payment transition applied",
		zap.Uint("payment_id", paymentID),
		zap.String("from", from),
		zap.String("to", to),
	)
	msg := map[string]interface{}{
		"type":       "transition",
		"payment_id": paymentID,
		"from":       from,
		"to":         to,
	}
	if bookingID != nil {
		msg["booking_id"] = *bookingID
	}
	s.feed.Broadcast(msg)
}
