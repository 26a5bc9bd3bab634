// README: Rating handlers; post-completion ratings and technician aggregates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homefix/internal/http/middleware"
	"homefix/internal/modules/rating"
)

type RatingHandler struct {
	ratings *rating.Service
}

func NewRatingHandler(svc *rating.Service) *RatingHandler {
	return &RatingHandler{ratings: svc}
}

type submitRatingReq struct {
	BookingID    string `json:"booking_id"`
	TechnicianID string `json:"technician_id"`
	Rating       int    `json:"rating"`
	Review       string `json:"review"`
}

func (h *RatingHandler) Submit(c *gin.Context) {
	var req submitRatingReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.ratings.Submit(c.Request.Context(), rating.SubmitCommand{
		BookingID:    trimID(req.BookingID),
		TechnicianID: trimID(req.TechnicianID),
		Actor:        middleware.CallerActor(c),
		Score:        req.Rating,
		Review:       req.Review,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *RatingHandler) ListForTechnician(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	summary, err := h.ratings.ListForTechnician(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, summary)
}

func (h *RatingHandler) Average(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	avg, err := h.ratings.Average(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, avg)
}
