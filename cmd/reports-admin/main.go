package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/yourorg/orderreports/internal/featureflags"
	"github.com/yourorg/orderreports/internal/infrastructure/logger"
	"github.com/yourorg/orderreports/internal/paths"
	"github.com/yourorg/orderreports/internal/repository"
	"github.com/yourorg/orderreports/internal/security/audit"
	"github.com/yourorg/orderreports/internal/service"
	"github.com/yourorg/orderreports/internal/worker"
	"github.com/yourorg/orderreports/pkg/config"
)

// app bundles the wired storage core for command handlers.
type app struct {
	root    string
	cfg     *config.Config
	users   *repository.SQLiteUserRepository
	tenants *repository.TenantDBManager
	auth    *service.AuthService
	brands  *service.BrandService
	ingest  *service.IngestService
	staging *repository.StagingArea
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger(cfg.LogLevel)

	root, err := paths.DataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve data directory: %v\n", err)
		os.Exit(1)
	}
	for _, dir := range []string{root, paths.StagingDir(root)} {
		if err := paths.Ensure(dir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to prepare data directory: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	users, err := repository.NewSQLiteUserRepository(ctx, paths.UsersDBPath(root), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open user store: %v\n", err)
		os.Exit(1)
	}
	defer users.Close()

	registry := repository.NewFileBrandRegistry(paths.BrandsFilePath(root), log)
	tenants := repository.NewTenantDBManager(root, registry, featureflags.Enabled(featureflags.BrandHardDelete), log)
	defer tenants.Close()

	auditLog := audit.NewLogger(log)
	staging := repository.NewStagingArea(paths.StagingDir(root), log)

	a := &app{
		root:    root,
		cfg:     cfg,
		users:   users,
		tenants: tenants,
		auth:    service.NewAuthService(users, cfg.BcryptCost, auditLog, log),
		brands:  service.NewBrandService(registry, tenants, auditLog, log),
		ingest:  service.NewIngestService(staging, tenants, registry, root, auditLog, log),
		staging: staging,
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "user":
		a.handleUser(ctx, args)
	case "brand":
		a.handleBrand(ctx, args)
	case "ingest":
		a.handleIngest(ctx, args)
	case "report":
		a.handleReport(ctx, args)
	case "sweep":
		a.handleSweep(ctx, log)
	case "path":
		fmt.Println(root)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func (a *app) handleUser(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: reports-admin user <create|reset|list>")
		return
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		username := fs.String("username", "", "username (required)")
		password := fs.String("password", "", "password (required)")
		fs.Parse(args[1:])

		user, err := a.auth.CreateUser(ctx, *username, *password)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("created user %s (id %d)\n", user.Username, user.ID)

	case "reset":
		fs := flag.NewFlagSet("user reset", flag.ExitOnError)
		username := fs.String("username", "", "username (required)")
		password := fs.String("password", "", "new password (required)")
		fs.Parse(args[1:])

		if err := a.auth.ResetPassword(ctx, *username, *password); err != nil {
			fatal(err)
		}
		fmt.Printf("password reset for %s\n", *username)

	case "list":
		users, err := a.auth.ListUsers(ctx)
		if err != nil {
			fatal(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()

	default:
		fmt.Printf("unknown user command: %s\n", args[0])
	}
}

func (a *app) handleBrand(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: reports-admin brand <create|list|delete|rename>")
		return
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("brand create", flag.ExitOnError)
		name := fs.String("name", "", "display name (required)")
		id := fs.String("id", "", "brand id (optional, derived from name)")
		fs.Parse(args[1:])

		brand, err := a.brands.Create(ctx, *name, *id)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("created brand %s (%s)\n", brand.ID, brand.DisplayName)

	case "list":
		brands, err := a.brands.List(ctx)
		if err != nil {
			fatal(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCREATED")
		for _, b := range brands {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.DisplayName, b.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()

	case "delete":
		fs := flag.NewFlagSet("brand delete", flag.ExitOnError)
		id := fs.String("id", "", "brand id (required)")
		fs.Parse(args[1:])

		if err := a.brands.Delete(ctx, *id); err != nil {
			fatal(err)
		}
		fmt.Printf("deleted brand %s\n", *id)

	case "rename":
		fs := flag.NewFlagSet("brand rename", flag.ExitOnError)
		id := fs.String("id", "", "brand id (required)")
		name := fs.String("name", "", "new display name (required)")
		fs.Parse(args[1:])

		if err := a.brands.Rename(ctx, *id, *name); err != nil {
			fatal(err)
		}
		fmt.Printf("renamed brand %s\n", *id)

	default:
		fmt.Printf("unknown brand command: %s\n", args[0])
	}
}

func (a *app) handleIngest(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	brandID := fs.String("brand", "", "brand id (required)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: reports-admin ingest --brand <id> <report.tsv>")
		os.Exit(1)
	}
	reportPath := fs.Arg(0)

	f, err := os.Open(reportPath)
	if err != nil {
		fatal(err)
	}
	sf, err := a.ingest.Stage(ctx, f, filepath.Base(reportPath))
	f.Close()
	if err != nil {
		fatal(err)
	}

	rec, err := a.ingest.Commit(ctx, sf, *brandID)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("ingested %d rows, archived to %s\n", rec.RowCount, rec.ArchivedPath)
}

func (a *app) handleReport(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: reports-admin report <sales|latest>")
		return
	}

	switch args[0] {
	case "sales":
		fs := flag.NewFlagSet("report sales", flag.ExitOnError)
		brandID := fs.String("brand", "", "brand id (required)")
		from := fs.String("from", "", "start date YYYY-MM-DD (required)")
		to := fs.String("to", "", "end date YYYY-MM-DD (required)")
		fs.Parse(args[1:])

		db, err := a.tenants.Get(ctx, *brandID)
		if err != nil {
			fatal(err)
		}
		total, err := repository.NewOrderRepository(db).SalesTotal(ctx, *from, *to)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("sales %s..%s: %.2f\n", *from, *to, total)

	case "latest":
		fs := flag.NewFlagSet("report latest", flag.ExitOnError)
		brandID := fs.String("brand", "", "brand id (required)")
		fs.Parse(args[1:])

		db, err := a.tenants.Get(ctx, *brandID)
		if err != nil {
			fatal(err)
		}
		latest, err := repository.NewOrderRepository(db).LatestOrderUpdate(ctx)
		if err != nil {
			fatal(err)
		}
		if latest == "" {
			fmt.Println("no orders yet")
			return
		}
		fmt.Println(latest)

	default:
		fmt.Printf("unknown report command: %s\n", args[0])
	}
}

func (a *app) handleSweep(ctx context.Context, log *slog.Logger) {
	sweeper := worker.NewStagingSweeper(a.staging,
		time.Duration(a.cfg.StagingSweepInterval)*time.Minute,
		time.Duration(a.cfg.StagingMaxAgeMinutes)*time.Minute,
		log)
	removed := sweeper.SweepOnce(ctx)
	fmt.Printf("removed %d stale staged file(s)\n", removed)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`reports-admin - storage administration for the order reporting app

Usage:
  reports-admin user <create|reset|list>
  reports-admin brand <create|list|delete|rename>
  reports-admin ingest --brand <id> <report.tsv>
  reports-admin report <sales|latest>
  reports-admin sweep
  reports-admin path

Environment:
  ORDERREPORTS_DATA_DIR  override the data directory
  LOG_LEVEL              debug|info|warn|error
  FLAG_BRAND_HARD_DELETE delete brand directories instead of archiving`)
}
