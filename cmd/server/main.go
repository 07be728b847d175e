package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AidoTokihisa11/visiconnect-sub001/internal/config"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/handlers"
	httpx "github.com/AidoTokihisa11/visiconnect-sub001/internal/http"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/registry"
	"github.com/AidoTokihisa11/visiconnect-sub001/internal/service"
)

func main() {
	cfg := config.Load()

	participants := registry.NewParticipantRegistry()
	rooms := registry.NewRoomRegistry(cfg.ChatHistoryMax, cfg.BoardHistoryMax)
	svc := service.NewSessionService(participants, rooms)

	feed := handlers.NewStatusFeed(svc)
	svc.RegisterUpdateCallback(feed.NotifyRoomUpdate)

	roomHandler := handlers.NewRoomHandler(svc)
	wsHandler := handlers.NewWebSocketHandler(svc)
	router := httpx.NewRouter(roomHandler, wsHandler, feed, cfg.AllowedOrigins)

	// Periodic sweep of empty rooms. Leave/disconnect already delete them
	// synchronously; this reclaims anything that slipped through.
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if count := svc.CleanupEmptyRooms(); count > 0 {
					log.Printf("swept %d empty rooms", count)
				}
			case <-sweepDone:
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("listening on %s", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("shutdown signal received, shutting down gracefully...")
	close(sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}
