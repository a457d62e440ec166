// Package main provides the CLI wrapper for the tiltmouse server.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tiltmouse/tiltmouse-server/internal/config"
	"github.com/tiltmouse/tiltmouse-server/pkg/inputsink"
	"github.com/tiltmouse/tiltmouse-server/pkg/session"
	"github.com/tiltmouse/tiltmouse-server/pkg/transport"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	bindAddr := flag.String("bind", "", "Bind address (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tiltmouse-server - phone-tilt cursor control host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # Run with default settings\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config config.toml      # Run with custom config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9000               # Override listen port\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("tiltmouse-server version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *bindAddr != "" {
		cfg.Server.BindAddress = *bindAddr
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if *verbose {
		log.Printf("Configuration:")
		log.Printf("  Server: %s:%d", cfg.Server.BindAddress, cfg.Server.Port)
		log.Printf("  Motion: tick_hz=%.1f sensitivity=%.2f screen_angle=%d",
			cfg.Motion.TickHz, cfg.Motion.Sensitivity, cfg.Motion.ScreenAngleDeg)
		log.Printf("  Fusion: %+v", cfg.Fusion)
	}

	sink := inputsink.NewLogSink(log.Default())

	newSession := func() transport.SessionHandler {
		return session.New(cfg, sink, log.Default())
	}
	server := transport.NewServer(newSession, log.Default())

	mux := http.NewServeMux()
	mux.Handle("/ws", server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0,
	}

	go func() {
		log.Printf("tiltmouse-server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	if err := httpServer.Close(); err != nil {
		log.Printf("error closing server: %v", err)
	}
}
