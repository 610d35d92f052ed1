// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/handlers"
	"ridehail/internal/http/middleware"
)

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log))

	rideHandler := handlers.NewRideHandler(s.rides, s.lifecycle)
	r.POST("/api/rides", rideHandler.Request)
	r.GET("/api/rides/:id", rideHandler.Get)
	r.GET("/api/rides/:id/events", rideHandler.Events)
	r.POST("/api/rides/:id/cancel", rideHandler.Cancel)
	r.POST("/api/rides/:id/decline", rideHandler.Decline)
	r.POST("/api/rides/:id/finish", rideHandler.Finish)
	r.POST("/api/rides/:id/panic", rideHandler.Panic)
	r.POST("/api/rides/:id/stop", rideHandler.Stop)

	driverHandler := handlers.NewDriverHandler(s.drivers, s.ledger)
	r.GET("/api/drivers/:id", driverHandler.Get)
	r.PUT("/api/drivers/:id/vehicle", driverHandler.RegisterVehicle)
	r.POST("/api/drivers/:id/online", driverHandler.Online)
	r.POST("/api/drivers/:id/offline", driverHandler.Offline)
	r.GET("/api/drivers/:id/working-time", driverHandler.WorkingTime)

	passengerHandler := handlers.NewPassengerHandler(s.routes)
	r.GET("/api/passengers/:id/favorites", passengerHandler.ListFavorites)
	r.POST("/api/passengers/:id/favorites", passengerHandler.AddFavorite)
	r.DELETE("/api/passengers/:id/favorites/:routeId", passengerHandler.RemoveFavorite)

	notificationHandler := handlers.NewNotificationHandler(s.notifications)
	r.GET("/api/notifications", notificationHandler.List)
	r.POST("/api/notifications/:id/open", notificationHandler.Open)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
