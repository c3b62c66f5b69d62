// Command importprofiles loads legacy profiles and their contact details.
//
//	importprofiles json <profiles.json>
//	importprofiles emails <contacts.csv>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/openenroll/portal/internal/app"
	"github.com/openenroll/portal/internal/config"
	"github.com/openenroll/portal/internal/profiles"
	"github.com/openenroll/portal/pkg/logger"
)

const usage = "usage: importprofiles json <file> | emails <file>"

var errUsage = errors.New(usage)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if !cfg.MongoDB.Enabled() {
		logger.Fatalf("MONGODB_URI is required")
	}
	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg.MongoDB)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}
	defer stores.Close(ctx)

	if err := run(ctx, os.Args[1:], os.Stdout, profiles.NewService(stores.Profiles)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, svc *profiles.Service) error {
	if len(args) != 2 {
		return errUsage
	}
	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[1], err)
	}
	defer f.Close()

	switch args[0] {
	case "json":
		n, err := svc.Import(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported %d profiles\n", n)
	case "emails":
		rep, err := svc.ApplyEmails(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated %d profiles\n", len(rep.Updated))
		for _, u := range rep.NotFound {
			fmt.Fprintf(out, "Profile not found: %s\n", u)
		}
	default:
		return errUsage
	}
	return nil
}
