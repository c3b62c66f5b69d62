// Command massaward grants one badge to many usernames, read from a file or
// pasted interactively.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openenroll/portal/internal/app"
	"github.com/openenroll/portal/internal/badges"
	"github.com/openenroll/portal/internal/config"
	"github.com/openenroll/portal/pkg/logger"
)

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

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, badges.NewService(stores.Badges)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	badgeID int64
	file    string
	yes     bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("massaward", flag.ContinueOnError)
	o := &options{}
	fs.Int64Var(&o.badgeID, "badge-id", 0, "ID of the badge to award (prompted when omitted)")
	fs.StringVar(&o.file, "file", "", "text file with one username per line (paste mode when omitted)")
	fs.BoolVar(&o.yes, "yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, out io.Writer, svc *badges.Service) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	in := bufio.NewReader(stdin)

	badge, err := selectBadge(ctx, svc, o.badgeID, in, out)
	if err != nil {
		return err
	}

	var usernames []string
	if o.file != "" {
		f, err := os.Open(o.file)
		if err != nil {
			return fmt.Errorf("open %s: %w", o.file, err)
		}
		defer f.Close()
		usernames, err = badges.ParseUsernames(f, false)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, "Paste usernames, one per line. Finish with an empty line.")
		if usernames, err = badges.ParseUsernames(strings.NewReader(readPaste(in)), true); err != nil {
			return err
		}
	}
	if len(usernames) == 0 {
		return badges.ErrNoUsernames
	}

	fmt.Fprintf(out, "Badge: %d - %s\n", badge.ID, badge.Name)
	fmt.Fprintf(out, "Users to award: %d (unique)\n", len(usernames))
	if !o.yes && !confirm(in, out, "Proceed with awarding?") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	res, err := svc.BulkAward(ctx, badge.ID, usernames)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nCreated: %d awards\n", len(res.Created))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped (already awarded): %d\n", len(res.Skipped))
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(out, "Errors: %d\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  - %s: %v\n", e.Username, e.Err)
		}
	}
	return nil
}

func selectBadge(ctx context.Context, svc *badges.Service, id int64, in *bufio.Reader, out io.Writer) (*badges.Badge, error) {
	list, err := svc.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.New("no badges found, create one first")
	}
	find := func(id int64) *badges.Badge {
		for _, b := range list {
			if b.ID == id {
				return b
			}
		}
		return nil
	}
	if id != 0 {
		if b := find(id); b != nil {
			return b, nil
		}
		return nil, fmt.Errorf("badge with id %d: %w", id, badges.ErrBadgeNotFound)
	}

	fmt.Fprintln(out, "Available badges:")
	for _, b := range list {
		fmt.Fprintf(out, "  [%d] %s\n", b.ID, b.Name)
	}
	for {
		fmt.Fprint(out, "Enter badge id: ")
		line, err := in.ReadString('\n')
		raw := strings.TrimSpace(line)
		if raw != "" {
			if n, perr := strconv.ParseInt(raw, 10, 64); perr != nil {
				fmt.Fprintln(out, "Please enter a numeric id.")
			} else if b := find(n); b != nil {
				return b, nil
			} else {
				fmt.Fprintln(out, "Badge not found, try again.")
			}
		}
		if err != nil {
			return nil, fmt.Errorf("no badge selected: %w", err)
		}
	}
}

// readPaste consumes lines up to the first blank one so later prompts still
// read from the same input.
func readPaste(in *bufio.Reader) string {
	var b strings.Builder
	for {
		line, err := in.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			return b.String()
		}
		b.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
		if err != nil {
			return b.String()
		}
	}
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
