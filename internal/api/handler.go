// Package api exposes the trading core to the GUI collaborator over HTTP
// and a push websocket.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeking/internal/events"
	"tradeking/internal/strategy"
	"tradeking/internal/trader"
)

// Server wires HTTP endpoints around the trader manager.
type Server struct {
	Router           *gin.Engine
	Manager          *trader.Manager
	Bus              *events.Bus[strategy.TradeView]
	JWTSecret        string
	OperatorPassword string
}

// NewServer builds the router and its middleware stack.
func NewServer(manager *trader.Manager, bus *events.Bus[strategy.TradeView], jwtSecret, operatorPassword string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:           r,
		Manager:          manager,
		Bus:              bus,
		JWTSecret:        jwtSecret,
		OperatorPassword: operatorPassword,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/contracts", s.getContracts)
			protected.GET("/prices", s.getPrices)

			protected.GET("/watchlist", s.getWatchlist)
			protected.PUT("/watchlist", s.putWatchlist)

			protected.GET("/strategies", s.getStrategies)
			protected.POST("/strategies", s.createStrategy)
			protected.DELETE("/strategies/:id", s.deleteStrategy)

			protected.GET("/logs", s.getLogs)
			protected.GET("/trades", s.getTrades)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	venues := gin.H{}
	for _, name := range s.Manager.Platforms() {
		conn, _ := s.Manager.Connector(name)
		venues[name] = conn.Connected()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "venues": venues})
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
