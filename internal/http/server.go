// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hail/internal/auth"
	"hail/internal/http/handlers"
	"hail/internal/http/middleware"
	"hail/internal/hub"
	"hail/internal/logging"
	"hail/internal/modules/chat"
	"hail/internal/modules/payment"
	"hail/internal/modules/pricing"
	"hail/internal/modules/rating"
	"hail/internal/modules/ride"
	"hail/internal/modules/wallet"
	"hail/internal/types"
)

type ServerDeps struct {
	Rides     *ride.Service
	Wallet    *wallet.Service
	Payments  *payment.Service
	Ratings   *rating.Service
	Chat      *chat.Service
	Suggester pricing.Suggester
	Routes    *pricing.RouteService
	Hub       *hub.Hub
	Tokens    *auth.JWT
	Resolver  auth.Resolver
}

func NewRouter(deps ServerDeps) *gin.Engine {
	log := logging.New("http")

	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.Logging(log), middleware.Metrics())

	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(deps.Wallet, deps.Tokens)
	router.POST("/api/auth/register", authHandler.Register)
	router.POST("/api/auth/login", authHandler.Login)

	api := router.Group("/api", middleware.Auth(deps.Resolver))

	pricingHandler := handlers.NewPricingHandler(deps.Suggester)
	api.GET("/rides/fare-suggestion", pricingHandler.Suggest)

	rideHandler := handlers.NewRideHandler(deps.Rides, deps.Routes)
	api.POST("/rides", middleware.RequireRole(types.RoleRequester), rideHandler.Create)
	api.GET("/rides/available", middleware.RequireRole(types.RoleProvider), rideHandler.ListOpen)
	api.GET("/rides/mine", rideHandler.ListMine)
	api.GET("/rides/:id", rideHandler.Get)
	api.POST("/rides/:id/offers", middleware.RequireRole(types.RoleProvider), rideHandler.SubmitOffer)
	api.GET("/rides/:id/offers", middleware.RequireRole(types.RoleRequester), rideHandler.ListOffers)
	api.POST("/rides/:id/offers/:offer_id/accept", middleware.RequireRole(types.RoleRequester), rideHandler.AcceptOffer)
	api.POST("/rides/:id/complete", middleware.RequireRole(types.RoleProvider), rideHandler.Complete)
	api.POST("/rides/:id/cancel", middleware.RequireRole(types.RoleRequester), rideHandler.Cancel)

	walletHandler := handlers.NewWalletHandler(deps.Wallet)
	api.GET("/wallet/balance", walletHandler.Balance)
	api.POST("/wallet/deposit", walletHandler.Deposit)
	api.POST("/wallet/withdraw", walletHandler.Withdraw)

	paymentHandler := handlers.NewPaymentHandler(deps.Payments)
	api.POST("/payments/rides/:id", middleware.RequireRole(types.RoleRequester), paymentHandler.Settle)
	api.GET("/payments/rides/:id", paymentHandler.ForRide)
	api.GET("/payments/history", paymentHandler.History)
	api.GET("/providers/earnings", middleware.RequireRole(types.RoleProvider), paymentHandler.Earnings)

	ratingHandler := handlers.NewRatingHandler(deps.Ratings)
	api.POST("/ratings", ratingHandler.Submit)
	api.GET("/ratings/accounts/:id", ratingHandler.ForAccount)

	chatHandler := handlers.NewChatHandler(deps.Chat)
	api.GET("/chat/rides/:id", chatHandler.History)
	api.POST("/chat/rides/:id", chatHandler.Post)

	adminHandler := handlers.NewAdminHandler(deps.Wallet, deps.Rides)
	api.GET("/admin/stats", middleware.RequireRole(types.RoleOperator), adminHandler.Stats)

	wsHandler := handlers.NewWSHandler(deps.Hub, deps.Chat)
	router.GET("/ws", middleware.Auth(deps.Resolver), wsHandler.Serve)

	return router
}
