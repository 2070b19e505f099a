// README: Entry point; loads config, wires services, starts HTTP server and
// the expiry sweeper.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hail/internal/auth"
	"hail/internal/config"
	httptransport "hail/internal/http"
	"hail/internal/hub"
	"hail/internal/infra"
	"hail/internal/logging"
	"hail/internal/modules/chat"
	"hail/internal/modules/payment"
	"hail/internal/modules/pricing"
	"hail/internal/modules/rating"
	"hail/internal/modules/ride"
	"hail/internal/modules/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	tokens := auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	walletStore := wallet.NewPGStore(dbPool)
	walletSvc := wallet.NewService(walletStore)

	// Fare suggesters are tried in order; the rate table never fails.
	suggesters := pricing.Chain{}
	if cfg.Fare.ServiceURL != "" {
		suggesters = append(suggesters, pricing.NewHTTPSuggester(cfg.Fare.ServiceURL))
	}
	if cfg.Fare.GeminiKey != "" {
		gemini, err := pricing.NewGeminiSuggester(ctx, cfg.Fare.GeminiKey)
		if err != nil {
			log.Fatalf("gemini init: %v", err)
		}
		defer gemini.Close()
		suggesters = append(suggesters, gemini)
	}
	suggesters = append(suggesters, pricing.Table{})

	var routes *pricing.RouteService
	if cfg.Maps.APIKey != "" {
		routes, err = pricing.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
	}

	// The hub is built after the ride service; wiring goes through a late-bound
	// notifier to break the construction cycle.
	notifier := &lateNotifier{}

	rideStore := ride.NewPGStore(dbPool)
	rideSvc := ride.NewService(rideStore, suggesters, notifier, cfg.Sweep, logging.New("ride"))

	geo := hub.NewGeoStore(redisClient)
	broadcaster := hub.NewHub(rideSvc, walletSvc, geo)
	broadcaster.Start()
	defer broadcaster.Stop()
	notifier.bind(broadcaster)

	paymentStore := payment.NewPGStore(dbPool)
	paymentSvc := payment.NewService(paymentStore, rideSvc, broadcaster)

	ratingStore := rating.NewPGStore(dbPool)
	ratingSvc := rating.NewService(ratingStore, rideSvc)

	chatStore := chat.NewPGStore(dbPool)
	chatSvc := chat.NewService(chatStore, rideSvc, broadcaster)

	router := httptransport.NewRouter(httptransport.ServerDeps{
		Rides:     rideSvc,
		Wallet:    walletSvc,
		Payments:  paymentSvc,
		Ratings:   ratingSvc,
		Chat:      chatSvc,
		Suggester: suggesters,
		Routes:    routes,
		Hub:       broadcaster,
		Tokens:    tokens,
		Resolver:  tokens,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go rideSvc.RunExpirySweeper(ctx)

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
