// README: Payment annotation handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homefix/internal/http/middleware"
	"homefix/internal/modules/payment"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(svc *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: svc}
}

type recordPaymentReq struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	Status string `json:"status"`
}

func (h *PaymentHandler) Record(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req recordPaymentReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Record(c.Request.Context(), payment.RecordCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Amount:    req.Amount,
		Method:    req.Method,
		Status:    req.Status,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *PaymentHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.payments.List(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"payments": out})
}
