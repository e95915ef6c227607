// Command adminctl provisions studio admin accounts.
//
//	adminctl -email owner@studio.example -name "Studio Owner"
//
// The password is read from ADMIN_PASSWORD.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/diagnosis/inkstudio-bookings/internal/repo/postgres"
	"github.com/diagnosis/inkstudio-bookings/internal/service"
	"github.com/diagnosis/inkstudio-bookings/pkg/config"
	"github.com/diagnosis/inkstudio-bookings/pkg/database"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	name := flag.String("name", "", "display name")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be set")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var displayName *string
	if *name != "" {
		displayName = name
	}

	authService := service.NewAuthService(postgres.NewAdminRepo(pool), cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	admin, err := authService.CreateAdmin(ctx, *email, password, displayName)
	if err != nil {
		logger.Error("Failed to create admin", "error", err)
		os.Exit(1)
	}
	logger.Info("Admin created", "admin_id", admin.ID, "email", admin.Email)
}
