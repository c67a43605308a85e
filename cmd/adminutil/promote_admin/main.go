package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/config"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/logger"
	"github.com/sudo-init-do/localfix/internal/store"
)

func main() {
	email := flag.String("email", "", "Email of the profile to promote to admin")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run cmd/adminutil/promote_admin/main.go -email user@example.com")
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

	id, err := store.New(pool).PromoteToAdmin(ctx, *email)
	if apperr.IsNotFound(err) {
		log.Fatalf("no profile found with email: %s", *email)
	}
	if err != nil {
		log.Fatalf("failed to promote profile to admin: %v", err)
	}

	fmt.Printf("Profile %s (%s) promoted to admin.\n", *email, id)
}
