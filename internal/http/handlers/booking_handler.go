// README: Booking handlers; direct and broadcast requests and every lifecycle transition.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homefix/internal/http/middleware"
	"homefix/internal/modules/booking"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type createBookingReq struct {
	ServiceID    string `json:"service_id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Address      string `json:"address"`
	Note         string `json:"note"`
	TechnicianID string `json:"technician_id"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		Actor:        middleware.CallerActor(c),
		ServiceID:    trimID(req.ServiceID),
		Date:         req.Date,
		Time:         req.Time,
		Address:      req.Address,
		Note:         req.Note,
		TechnicianID: optionalID(req.TechnicianID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

type broadcastReq struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Location  string `json:"location"`
	Note      string `json:"note"`
}

func (h *BookingHandler) Broadcast(c *gin.Context) {
	var req broadcastReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Broadcast(c.Request.Context(), booking.BroadcastCommand{
		Actor:     middleware.CallerActor(c),
		ServiceID: trimID(req.ServiceID),
		Date:      req.Date,
		Time:      req.Time,
		Location:  req.Location,
		Note:      req.Note,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (h *BookingHandler) ListAll(c *gin.Context) {
	out, err := h.bookings.ListAll(c.Request.Context())
	h.writeList(c, out, err)
}

func (h *BookingHandler) Mine(c *gin.Context) {
	out, err := h.bookings.ListByCustomer(c.Request.Context(), middleware.CallerActor(c).ID)
	h.writeList(c, out, err)
}

func (h *BookingHandler) Assigned(c *gin.Context) {
	out, err := h.bookings.ListByTechnician(c.Request.Context(), middleware.CallerActor(c).ID)
	h.writeList(c, out, err)
}

// Pending lists bookings awaiting an admin; ?scope=open adds open broadcast requests.
func (h *BookingHandler) Pending(c *gin.Context) {
	var (
		out []booking.Booking
		err error
	)
	if c.Query("scope") == "open" {
		out, err = h.bookings.ListOpen(c.Request.Context())
	} else {
		out, err = h.bookings.ListPending(c.Request.Context())
	}
	h.writeList(c, out, err)
}

func (h *BookingHandler) writeList(c *gin.Context, out []booking.Booking, err error) {
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if out == nil {
		out = []booking.Booking{}
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (h *BookingHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.bookings.Events(c.Request.Context(), id, middleware.CallerActor(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if events == nil {
		events = []booking.Event{}
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

type decisionReq struct {
	Decision string `json:"decision"`
}

func (h *BookingHandler) Decision(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req decisionReq
	if !bindJSON(c, &req) {
		return
	}
	action, err := booking.ParseDecision(req.Decision)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	b, err := h.bookings.AdminDecision(c.Request.Context(), booking.DecisionCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Action:    action,
	})
	h.writeBooking(c, b, err)
}

type quoteReq struct {
	ProposedPrice int64 `json:"proposed_price"`
}

func (h *BookingHandler) Quote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req quoteReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Quote(c.Request.Context(), booking.QuoteCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Amount:    req.ProposedPrice,
	})
	h.writeBooking(c, b, err)
}

type quoteResponseReq struct {
	Response string `json:"response"`
}

func (h *BookingHandler) QuoteResponse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req quoteResponseReq
	if !bindJSON(c, &req) {
		return
	}
	accept, err := booking.ParseQuoteResponse(req.Response)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	b, err := h.bookings.RespondToQuote(c.Request.Context(), booking.QuoteResponseCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Accept:    accept,
	})
	h.writeBooking(c, b, err)
}

type confirmReq struct {
	TechnicianID string `json:"technician_id"`
	Status       string `json:"status"`
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req confirmReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Confirm(c.Request.Context(), booking.ConfirmCommand{
		BookingID:    id,
		Actor:        middleware.CallerActor(c),
		TechnicianID: optionalID(req.TechnicianID),
		Status:       req.Status,
	})
	h.writeBooking(c, b, err)
}

func (h *BookingHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Complete(c.Request.Context(), booking.CompleteCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
	})
	h.writeBooking(c, b, err)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelReq
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id,
		Actor:     middleware.CallerActor(c),
		Reason:    req.Reason,
	})
	h.writeBooking(c, b, err)
}

func (h *BookingHandler) writeBooking(c *gin.Context, b *booking.Booking, err error) {
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
