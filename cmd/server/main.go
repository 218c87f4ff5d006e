package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cad-converter/internal/config"
	"cad-converter/internal/server"
	"cad-converter/internal/tools"
)

func main() {
	host := flag.String("host", "0.0.0.0", "listen address")
	port := flag.Int("port", 8000, "listen port")
	workDir := flag.String("workdir", "", "directory for uploads and outputs (default: temp dir)")
	settingsPath := flag.String("settings", config.DefaultPath(), "path to the settings file")
	flag.Parse()

	settings, err := config.NewJSONStore(*settingsPath).Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	dir := *workDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "cad-converter-server-*")
		if err != nil {
			log.Fatalf("create work directory: %v", err)
		}
	}

	paths := tools.NewLocator().Discover()
	for tool, available := range paths.Availability() {
		log.Printf("tool %s: available=%t", tool, available)
	}

	srv, err := server.New(settings, paths, dir)
	if err != nil {
		log.Fatalf("initialize server: %v", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", *host, *port),
		Handler: srv.Handler(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("ListenAndServe error: %v", err)
	}
}
