package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
)

var demoProducts = []transport.CreateProductRequest{
	{Name: "Milk", Description: "Whole milk, 1 l", Price: decimal.RequireFromString("1.20"), Stock: 50},
	{Name: "Bread", Description: "Rye loaf", Price: decimal.RequireFromString("2.40"), Stock: 30},
	{Name: "Coffee Beans", Description: "Arabica, 500 g", Price: decimal.RequireFromString("11.90"), Stock: 20},
	{Name: "Green Tea", Description: "Sencha, 100 g", Price: decimal.RequireFromString("6.50"), Stock: 25},
	{Name: "Dark Chocolate", Description: "85% cocoa bar", Price: decimal.RequireFromString("3.10"), Stock: 40},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName, "cmd", "seed")
	ctx := logging.IntoContext(context.Background(), logger)

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Connect(openCtx, cfg.DatabaseURL, cfg.SQLitePath)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	r := repo.New(gdb)
	pub := events.LogPublisher{Logger: logger}
	catalog := &service.CatalogService{Repo: r, Events: pub}

	existing, err := r.ListProducts(ctx)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(existing) > 0 {
		logger.Info("products already present, skipping", "count", len(existing))
	} else {
		for _, req := range demoProducts {
			p, err := catalog.CreateProduct(ctx, req)
			if err != nil {
				log.Fatalf("create product %q: %v", req.Name, err)
			}
			logger.Info("product seeded", "product_id", p.ID, "name", p.Name)
		}
	}

	username, password := os.Getenv("SEED_ADMIN_USER"), os.Getenv("SEED_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}
	auth := &service.AuthService{Repo: r, Events: pub}
	user, err := auth.Register(ctx, username, password)
	switch {
	case errors.Is(err, service.ErrConflict):
		user, err = r.GetUserByUsername(ctx, username)
		if err != nil {
			log.Fatalf("load admin: %v", err)
		}
	case err != nil:
		log.Fatalf("register admin: %v", err)
	}
	if _, err := auth.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
		log.Fatalf("promote admin: %v", err)
	}
	logger.Info("admin ready", "user_id", user.ID, "username", username)
}
