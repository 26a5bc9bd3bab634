// README: Offer handlers; technicians respond to broadcast requests, customers compare and select.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homefix/internal/http/middleware"
	"homefix/internal/modules/booking"
	"homefix/internal/modules/offer"
)

type OfferHandler struct {
	offers *offer.Service
}

func NewOfferHandler(svc *offer.Service) *OfferHandler {
	return &OfferHandler{offers: svc}
}

type submitOfferReq struct {
	ProposedFare   int64  `json:"proposed_fare"`
	ETA            string `json:"eta"`
	ResponseStatus string `json:"response_status"`
}

func (h *OfferHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req submitOfferReq
	if !bindJSON(c, &req) {
		return
	}
	status, err := offer.ParseResponseStatus(req.ResponseStatus)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	o, err := h.offers.Submit(c.Request.Context(), offer.SubmitCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Fare:      req.ProposedFare,
		ETA:       req.ETA,
		Status:    status,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// Respond answers a direct booking from the technician's queue.
func (h *OfferHandler) Respond(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req submitOfferReq
	if !bindJSON(c, &req) {
		return
	}
	status, err := offer.ParseResponseStatus(req.ResponseStatus)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	b, err := h.offers.Respond(c.Request.Context(), offer.SubmitCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Fare:      req.ProposedFare,
		ETA:       req.ETA,
		Status:    status,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *OfferHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	views, err := h.offers.List(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if views == nil {
		views = []offer.View{}
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": views})
}

type selectOfferReq struct {
	TechnicianID string `json:"technician_id"`
}

func (h *OfferHandler) Select(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req selectOfferReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.offers.Select(c.Request.Context(), offer.SelectCommand{
		BookingID:    id,
		TechnicianID: trimID(req.TechnicianID),
		Actor:        middleware.CallerActor(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

// PendingForTechnician lists open requests the technician has not answered yet.
func (h *OfferHandler) PendingForTechnician(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.offers.PendingForTechnician(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if out == nil {
		out = []booking.Booking{}
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out})
}
