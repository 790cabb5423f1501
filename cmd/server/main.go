package main

import (
	"flag"
	"fmt"
	"os"

	"deepdive/internal/app"
	"deepdive/internal/config"
	"deepdive/internal/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	listen := cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}
	// Allow overriding port via PORT env (useful for platforms)
	if p := os.Getenv("PORT"); p != "" {
		listen = ":" + p
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	srv, err := app.NewServer(cfg, log)
	if err != nil {
		fmt.Printf("failed to initialize server: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	if err := srv.Run(listen); err != nil {
		fmt.Printf("server exited with error: %v\n", err)
		os.Exit(1)
	}
}
