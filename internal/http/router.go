// README: HTTP route registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"homefix/internal/http/middleware"
	"homefix/internal/types"
)

func (s *Server) register(r *gin.Engine) {
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	customer := middleware.RequireRole(types.RoleCustomer)
	technician := middleware.RequireRole(types.RoleTechnician)
	admin := middleware.RequireRole(types.RoleAdmin)

	api := r.Group("/api", middleware.Auth(s.verifier))

	bookings := api.Group("/bookings")
	bookings.POST("", customer, s.bookings.Create)
	bookings.POST("/broadcast", customer, s.bookings.Broadcast)
	bookings.GET("", admin, s.bookings.ListAll)
	bookings.GET("/mine", customer, s.bookings.Mine)
	bookings.GET("/assigned", technician, s.bookings.Assigned)
	bookings.GET("/pending", admin, s.bookings.Pending)
	bookings.GET("/:id", s.bookings.Get)
	bookings.GET("/:id/events", s.bookings.Events)
	bookings.POST("/:id/decision", admin, s.bookings.Decision)
	bookings.POST("/:id/quote", technician, s.bookings.Quote)
	bookings.POST("/:id/quote/response", customer, s.bookings.QuoteResponse)
	bookings.POST("/:id/confirm", admin, s.bookings.Confirm)
	bookings.POST("/:id/complete", middleware.RequireRole(types.RoleTechnician, types.RoleAdmin), s.bookings.Complete)
	bookings.POST("/:id/cancel", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), s.bookings.Cancel)

	bookings.POST("/:id/offers", technician, s.offers.Submit)
	bookings.GET("/:id/offers", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), s.offers.List)
	bookings.POST("/:id/select", customer, s.offers.Select)
	bookings.POST("/:id/respond", technician, s.offers.Respond)

	bookings.POST("/:id/payments", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), s.payments.Record)
	bookings.GET("/:id/payments", middleware.RequireRole(types.RoleCustomer, types.RoleAdmin), s.payments.List)

	api.POST("/ratings", customer, s.ratings.Submit)

	technicians := api.Group("/technicians")
	technicians.GET("", s.catalog.ListTechnicians)
	technicians.GET("/:id/requests", middleware.RequireRole(types.RoleTechnician, types.RoleAdmin), s.offers.PendingForTechnician)
	technicians.GET("/:id/ratings", s.ratings.ListForTechnician)
	technicians.GET("/:id/rating", s.ratings.Average)

	api.GET("/services", s.catalog.ListServices)
	api.GET("/services/:id", s.catalog.GetService)

	api.GET("/ws", s.notify.Stream)
}
