package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/clipgate/internal/db"
	"github.com/jmehdipour/clipgate/internal/issuer"
	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmehdipour/clipgate/internal/repository"
	"github.com/jmehdipour/clipgate/internal/service/registry"
	"github.com/jmehdipour/clipgate/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var demoCustomers = []string{
	"Acme Corp",
	"Foobar LLC",
	"Beta Testers",
	"Northwind Studio",
	"Express Partner",
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		artifacts, err := storage.New(cmd.Context(), cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("artifact store: %w", err)
		}
		qr, err := issuer.NewQRIssuer(cfg.App.PublicBaseURL, cfg.App.QRSize)
		if err != nil {
			return err
		}

		outboxRepo := repository.NewOutboxRepository(sqlDB)
		reg := registry.New(repository.NewCustomersRepository(sqlDB, outboxRepo), artifacts, qr, log)

		log.Info("seeding demo customers")
		created, err := seedCustomers(cmd.Context(), reg, demoCustomers)
		if err != nil {
			return err
		}
		for _, c := range created {
			fmt.Printf("%-20s %s\n", c.Name, qr.UploadURL(c.AccessCode))
		}

		log.Info("seed completed", zap.Int("created", len(created)))
		return nil
	},
}

type seedRegistry interface {
	List(ctx context.Context) ([]model.Customer, error)
	Register(ctx context.Context, name string) (model.Customer, error)
}

// seedCustomers registers every name not already present (idempotent by name).
func seedCustomers(ctx context.Context, reg seedRegistry, names []string) ([]model.Customer, error) {
	existing, err := reg.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	var created []model.Customer
	for _, name := range names {
		if have[name] {
			continue
		}
		c, err := reg.Register(ctx, name)
		if err != nil {
			return created, fmt.Errorf("register %q: %w", name, err)
		}
		have[name] = true
		created = append(created, c)
	}
	return created, nil
}
