package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"kenfolio/internal/auth"
	"kenfolio/internal/config"
	"kenfolio/internal/database"
	"kenfolio/internal/models"
	"kenfolio/internal/persistence"
	"kenfolio/internal/portfolio"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	demoEmail    = "demo@kenfolio.local"
	demoPassword = "demo-password"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logrus.New()
	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	repo := database.New(db, logger)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	dir := auth.NewDirectory(repo, cfg.MinPasswordLen, logger)
	id, err := dir.Register(ctx, demoEmail, demoPassword)
	if errors.Is(err, auth.ErrEmailInUse) {
		id, err = dir.Verify(ctx, demoEmail, demoPassword)
	}
	if err != nil {
		log.Fatalf("demo account: %v", err)
	}

	fmt.Printf("Backfilling portfolio for %s (%s)...\n", demoEmail, id.UserID)

	// oldest first, so the log ends up most-recent-first
	history := []struct {
		daysAgo int
		coin    string
		kind    models.Kind
		qty     string
		price   string
	}{
		{30, "bitcoin", models.Buy, "0.5", "58000"},
		{21, "ethereum", models.Buy, "4", "2400"},
		{14, "bitcoin", models.Buy, "0.25", "61000"},
		{7, "ethereum", models.Sell, "1", "2650"},
		{2, "solana", models.Buy, "30", "140"},
	}

	st := models.EmptyState()
	for _, h := range history {
		st.Transactions = append([]models.Transaction{{
			Timestamp: time.Now().UTC().AddDate(0, 0, -h.daysAgo).Truncate(time.Second),
			Symbol:    h.coin,
			Kind:      h.kind,
			Quantity:  decimal.RequireFromString(h.qty),
			Price:     decimal.RequireFromString(h.price),
		}}, st.Transactions...)
	}
	st.Positions = portfolio.Aggregate(st.Transactions)

	gw := persistence.NewGateway(repo, logger)
	if err := gw.Save(ctx, id.UserID, st); err != nil {
		log.Fatalf("save: %v", err)
	}

	for sym, p := range st.Positions {
		fmt.Printf("  %-10s qty=%s cost=%s\n", sym, p.Quantity, p.CostBasis.StringFixed(2))
	}
	fmt.Println("Successfully backfilled the demo portfolio!")
	fmt.Printf("Sign in with %s / %s\n", demoEmail, demoPassword)
}
