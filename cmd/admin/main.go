/*
main.go - Operator commands

PURPOSE:
  One-off maintenance against the configured database.

COMMANDS:
  seed                                   Load default CHUs and commodities
  create-cha -name N -email E -password P [-chu ID]
                                         Create a CHA account
  reset-cha-password -email E -password P
                                         Replace a CHA's password

EXAMPLES:
  ./admin seed
  ./admin create-cha -name "Grace" -email grace@example.org -password s3cretpw -chu 1
  ./admin reset-cha-password -email grace@example.org -password n3wpassword

SEE ALSO:
  - accounts/accounts.go: CreateCHA, ResetCHAPassword
  - seed/seed.go: Default dataset
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/chwlink/commodity-engine/accounts"
	"github.com/chwlink/commodity-engine/config"
	"github.com/chwlink/commodity-engine/seed"
	"github.com/chwlink/commodity-engine/store/sqlite"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: admin <seed|create-cha|reset-cha-password> [flags]")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "seed":
		return runSeed(ctx, store, out)
	case "create-cha":
		return runCreateCHA(ctx, accounts.NewService(store, nil, logger), rest, out)
	case "reset-cha-password":
		return runResetPassword(ctx, accounts.NewService(store, nil, logger), rest, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runSeed(ctx context.Context, store seed.Store, out io.Writer) error {
	res, err := seed.Load(ctx, store, seed.Default())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d CHUs and %d commodities\n", len(res.CHUs), len(res.Commodities))
	return nil
}

func runCreateCHA(ctx context.Context, svc *accounts.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-cha", flag.ContinueOnError)
	name := fs.String("name", "", "CHA name")
	email := fs.String("email", "", "CHA email")
	password := fs.String("password", "", "CHA password")
	chu := fs.Int64("chu", 0, "CHU id (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return fmt.Errorf("-name and -email are required")
	}

	in := accounts.CHAInput{Name: *name, Email: *email, Password: *password}
	if *chu > 0 {
		in.CHUID = chu
	}

	cha, err := svc.CreateCHA(ctx, in)
	if err != nil {
		return err
	}
	svc.Logger.Info("cha created", zap.Int64("cha_id", cha.ID))
	fmt.Fprintf(out, "Created CHA %d (%s)\n", cha.ID, cha.Email)
	return nil
}

func runResetPassword(ctx context.Context, svc *accounts.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset-cha-password", flag.ContinueOnError)
	email := fs.String("email", "", "CHA email")
	password := fs.String("password", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	if err := svc.ResetCHAPassword(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Fprintf(out, "Password updated for %s\n", *email)
	return nil
}
