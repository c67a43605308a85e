package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/sudo-init-do/localfix/internal/config"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/lifecycle"
	"github.com/sudo-init-do/localfix/internal/logger"
	"github.com/sudo-init-do/localfix/internal/model"
	"github.com/sudo-init-do/localfix/internal/store"
)

// approve_service moves a pending service to approved, as an admin would.
// Usage:
//
//	go run cmd/adminutil/approve_service/main.go -id <service uuid>
func main() {
	id := flag.String("id", "", "ID of the pending service to approve")
	flag.Parse()

	if *id == "" {
		log.Fatalf("usage: go run cmd/adminutil/approve_service/main.go -id <service uuid>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL, zl)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	svc, err := st.GetService(ctx, *id)
	if err != nil {
		log.Fatalf("failed to load service: %v", err)
	}

	admin := lifecycle.ServiceParties(svc, "", model.RoleAdmin)
	if err := lifecycle.CanTransition(lifecycle.EntityService, string(svc.Status), string(model.ServiceApproved), admin); err != nil {
		log.Fatalf("cannot approve service in status %s: %v", svc.Status, err)
	}
	if _, err := st.SetServiceStatus(ctx, svc.ID, svc.Status, model.ServiceApproved); err != nil {
		log.Fatalf("failed to approve service: %v", err)
	}

	fmt.Printf("Service %s (%s) approved.\n", svc.Name, svc.ID)
}
