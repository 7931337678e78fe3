package handler

import (
	"errors"
	"net/http"
	"strconv"

	"pitchside/internal/repository"
	"pitchside/internal/service"
	"pitchside/pkg/gateway"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
}

func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Initiate creates the pending payment for a booking and returns the
// correlation token the client must place in the gateway order notes under
// the booking_token key.
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	p, err := h.checkout.Initiate(c.Request.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, service.ErrBookingNotPayable):
			c.JSON(http.StatusConflict, gin.H{"error": "booking is not awaiting payment"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_id":        p.ID,
		"correlation_token": p.CorrelationToken,
		"note_key":          gateway.NoteCorrelationKey,
		"amount_minor":      p.AmountMinor,
		"currency":          p.Currency,
	})
}
