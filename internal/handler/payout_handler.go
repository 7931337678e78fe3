package handler

import (
	"net/http"

	"pitchside/internal/middleware"
	"pitchside/internal/repository"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	payments repository.PaymentStore
}

func NewPayoutHandler(payments repository.PaymentStore) *PayoutHandler {
	return &PayoutHandler{payments: payments}
}

type payoutItem struct {
	PaymentID       uint   `json:"payment_id"`
	BookingID       *uint  `json:"booking_id"`
	GrossMinor      int64  `json:"gross_minor"`
	CommissionMinor int64  `json:"commission_minor"`
	NetPayoutMinor  int64  `json:"net_payout_minor"`
	Currency        string `json:"currency"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

// ListMine reports the stadium owner's payout-eligible payments. The splits
// were fixed at capture time; this endpoint only aggregates them.
func (h *PayoutHandler) ListMine(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	payments, err := h.payments.ListCompletedForOwner(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payouts"})
		return
	}
	items := make([]payoutItem, 0, len(payments))
	var totalNet, totalCommission int64
	for _, p := range payments {
		item := payoutItem{
			PaymentID:       p.ID,
			BookingID:       p.BookingID,
			GrossMinor:      p.AmountMinor,
			CommissionMinor: p.CommissionMinor,
			NetPayoutMinor:  p.NetPayoutMinor,
			Currency:        p.Currency,
		}
		if p.CompletedAt != nil {
			item.CompletedAt = p.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		items = append(items, item)
		totalNet += p.NetPayoutMinor
		totalCommission += p.CommissionMinor
	}
	c.JSON(http.StatusOK, gin.H{
		"payouts":                items,
		"total_net_minor":        totalNet,
		"total_commission_minor": totalCommission,
	})
}
