package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shellmux/shellmux/internal/app"
	"github.com/shellmux/shellmux/internal/infrastructure/config"
	"github.com/shellmux/shellmux/internal/infrastructure/logging"
)

func main() {
	host := flag.String("host", "", "Bind host (default loopback)")
	port := flag.Int("port", -1, "Bind port (0 picks an ephemeral port)")
	command := flag.String("command", "", "Create an initial session running this command")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port >= 0 {
		cfg.Server.Port = *port
	}

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.ForLevel(cfg.Logging.Level, false)
	}

	manager := app.NewManager(cfg, logger)
	if err := manager.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	addr, err := manager.Addr()
	if err != nil {
		log.Fatalf("Failed to resolve bound address: %v", err)
	}
	fmt.Printf("shellmux listening on http://%s\n", addr)

	if *command != "" {
		sess, err := manager.CreateSession(*command, flag.Args(), "")
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		url, _ := manager.SessionURL(sess.ID)
		fmt.Printf("session %s: %s\n", sess.ID, url)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
