package main

import (
	"fmt"
	"log"

	"wisdom-campus/internal/auth0"
	"wisdom-campus/internal/config"
	"wisdom-campus/internal/database"
	"wisdom-campus/internal/router"
)

func main() {
	// load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// init database
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	// run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// identity provider: real Auth0 client, or in-memory mock for local dev
	var provider auth0.Provider
	if cfg.Auth0.Mock {
		log.Println("auth0 mock enabled, using in-memory identity provider")
		provider = auth0.NewMockProvider()
	} else {
		provider = auth0.NewClient(cfg.Auth0)
	}

	// setup router
	r := router.SetupRouter(cfg, db, provider)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
