// ABOUTME: Admin CLI for compass store maintenance
// ABOUTME: Mints tokens, seeds the catalog, runs retention purges, prints stats

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/careeros/compass/internal/archive"
	"github.com/careeros/compass/internal/auth"
	"github.com/careeros/compass/internal/catalog"
	"github.com/careeros/compass/internal/config"
	"github.com/careeros/compass/internal/docstore"
	"github.com/careeros/compass/internal/ledger"
	"github.com/careeros/compass/internal/memory"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "token":
		err = cmdToken(args)
	case "seed":
		err = cmdSeed(args)
	case "purge":
		err = cmdPurge(args)
	case "stats":
		err = cmdStats(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: compass-admin <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  token --subject ID [--ttl 720h]   Mint a JWT for a user")
	fmt.Println("  seed --file resources.toml        Load a resource seed file")
	fmt.Println("  purge --subject ID [--older-than N]  Purge a user's messages")
	fmt.Println("  stats                             Per-collection document counts")
	fmt.Println()
	fmt.Println("Config is read from --config, COMPASS_CONFIG, or ./compass.yaml")
}

// loadConfig resolves the config file path for a command.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("COMPASS_CONFIG")
	}
	if path == "" {
		path = "compass.yaml"
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*docstore.SQLiteStore, error) {
	schema := docstore.Schema{
		ledger.Collection,
		memory.Collection,
		archive.Collection,
		catalog.Collection,
	}
	return docstore.NewSQLiteStore(cfg.Database.Path, schema)
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	subject := fs.String("subject", "", "user identifier for the sub claim")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if *subject == "" {
		return fmt.Errorf("--subject is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	color.Green("Token for %s (valid %s):", *subject, *ttl)
	fmt.Println(token)
	return nil
}

func cmdSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	file := fs.String("file", "", "TOML seed file")
	_ = fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("--file is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	inserted, err := catalog.New(store, nil).Seed(context.Background(), *file)
	if err != nil {
		return err
	}

	color.Green("Seeded %d new resources from %s", inserted, *file)
	return nil
}

func cmdPurge(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	subject := fs.String("subject", "", "user whose messages to purge")
	olderThan := fs.Int("older-than", 0, "only purge messages older than N days (0 = all)")
	_ = fs.Parse(args)

	if *subject == "" {
		return fmt.Errorf("--subject is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	caller := &auth.Identity{Subject: *subject}
	deleted, err := ledger.New(store, nil).ClearHistory(context.Background(), caller, *olderThan)
	if err != nil {
		return err
	}

	color.Green("Deleted %d messages for %s", deleted, *subject)
	return nil
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	collections := []string{
		ledger.Collection.Name,
		memory.Collection.Name,
		archive.Collection.Name,
		catalog.Collection.Name,
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tDOCUMENTS")
	for _, c := range collections {
		n, err := store.Count(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\n", c, n)
	}
	return w.Flush()
}
