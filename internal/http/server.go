// README: API gateway; holds the module services the routes delegate to.
package http

import (
	"ridehail/internal/logger"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/notification"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/worktime"
)

type ServerDeps struct {
	Rides         *ride.Service
	Lifecycle     *ride.Lifecycle
	Drivers       *driver.Service
	Ledger        *worktime.Ledger
	Routes        *route.Service
	Notifications *notification.Service
	Log           logger.ILogger
}

type Server struct {
	rides         *ride.Service
	lifecycle     *ride.Lifecycle
	drivers       *driver.Service
	ledger        *worktime.Ledger
	routes        *route.Service
	notifications *notification.Service
	log           logger.ILogger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		rides:         deps.Rides,
		lifecycle:     deps.Lifecycle,
		drivers:       deps.Drivers,
		ledger:        deps.Ledger,
		routes:        deps.Routes,
		notifications: deps.Notifications,
		log:           deps.Log,
	}
}
