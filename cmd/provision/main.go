package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/supreset/identity/internal/app"
	"github.com/supreset/identity/internal/auth"
	"github.com/supreset/identity/internal/migration"
)

func main() {
	count := flag.Int("count", 10, "number of accounts to create")
	start := flag.Int("start", 1, "first account number")
	prefix := flag.String("prefix", "Beta", "account name prefix")
	domain := flag.String("domain", "beta.supreset.local", "email domain")
	out := flag.String("out", "beta-accounts.md", "markdown file receiving the credentials")
	flag.Parse()

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	var (
		service *auth.Service
		logger  *zap.Logger
	)
	fxApp := fx.New(
		app.Core(),
		migration.Module(),
		fx.NopLogger,
		fx.Populate(&service, &logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := fxApp.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer fxApp.Stop(context.Background())

	accounts, err := service.ProvisionAccounts(ctx, *prefix, *domain, *start, *count)
	if err != nil {
		log.Fatalf("Failed to provision accounts (%d created): %v", len(accounts), err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}
	defer f.Close()

	if err := writeTable(f, accounts, time.Now()); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	logger.Info("accounts provisioned",
		zap.Int("created", len(accounts)),
		zap.String("out", *out))
}

func writeTable(w io.Writer, accounts []auth.ProvisionedAccount, now time.Time) error {
	if _, err := fmt.Fprintf(w, "# Beta accounts\n\nGenerated %s. Every account must change its password on first login.\n\n", now.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "| ID | Name | Email | Password |\n|---|---|---|---|"); err != nil {
		return err
	}
	for _, a := range accounts {
		if _, err := fmt.Fprintf(w, "| %d | %s | %s | `%s` |\n", a.User.ID, a.User.Name, a.User.EmailAddress(), a.Password); err != nil {
			return err
		}
	}
	return nil
}
