package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meeting-moderator-be/internal/bootstrap"
	"meeting-moderator-be/internal/config"
	"meeting-moderator-be/internal/server"
	"meeting-moderator-be/internal/tracer"
)

func main() {
	// 0. Initialize tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load configuration
	cfg := config.Load()

	// 2. Bootstrap dependencies (container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start background services
	go func() {
		log.Println("Background: starting transcript archiver...")
		if err := container.ArchiverService.Consume(context.Background()); err != nil {
			log.Printf("Background archiver error: %v", err)
		}
	}()

	if container.NotificationService != nil {
		go func() {
			log.Println("Background: starting event relay...")
			if err := container.NotificationService.Listen(); err != nil {
				log.Printf("Background relay error: %v", err)
			}
		}()
	}

	// 4. Initialize server
	srv := server.New(cfg, container)

	// 5. Run server; stop analysis loops cleanly on shutdown signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		container.AnalyzerRunner.StopAll()
		_ = srv.GetApp().Shutdown()
	}()

	log.Fatal(srv.Run())
}
