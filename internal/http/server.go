// README: API gateway; wires module services into handlers and builds the gin engine.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"homefix/internal/http/handlers"
	"homefix/internal/infra"
	"homefix/internal/logging"
	"homefix/internal/modules/booking"
	"homefix/internal/modules/catalog"
	"homefix/internal/modules/offer"
	"homefix/internal/modules/payment"
	"homefix/internal/modules/rating"
	"homefix/internal/notify"
)

type ServerDeps struct {
	Bookings *booking.Service
	Offers   *offer.Service
	Ratings  *rating.Service
	Payments *payment.Service
	Catalog  *catalog.Directory
	Hub      *notify.Hub
	Verifier infra.TokenVerifier
	Log      logrus.FieldLogger
}

type Server struct {
	bookings *handlers.BookingHandler
	offers   *handlers.OfferHandler
	ratings  *handlers.RatingHandler
	payments *handlers.PaymentHandler
	catalog  *handlers.CatalogHandler
	notify   *handlers.NotifyHandler
	verifier infra.TokenVerifier
	log      logrus.FieldLogger
}

func NewServer(deps ServerDeps) *Server {
	log := logging.OrDiscard(deps.Log)
	return &Server{
		bookings: handlers.NewBookingHandler(deps.Bookings),
		offers:   handlers.NewOfferHandler(deps.Offers),
		ratings:  handlers.NewRatingHandler(deps.Ratings),
		payments: handlers.NewPaymentHandler(deps.Payments),
		catalog:  handlers.NewCatalogHandler(deps.Catalog),
		notify:   handlers.NewNotifyHandler(deps.Hub, log),
		verifier: deps.Verifier,
		log:      log,
	}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	s.register(r)
	return r
}
