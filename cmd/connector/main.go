package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"listraksync/internal/app"
	"listraksync/internal/config"
	"listraksync/internal/database"
	"listraksync/internal/logging"
	"listraksync/internal/queue"
	"listraksync/internal/service"

	"github.com/rs/zerolog"
)

const usage = `usage: connector <command> [flags]

commands:
  sync-customers              -scope -offset -limit
  sync-orders                 -scope
  sync-newsletter-recipients  -scope
  sync-products               -scope -limit -local
  retry-failed-requests
  export-failed-requests      -out
  import                      -table -file
  dead-letters
  backup
`

var errResultFailed = errors.New("command did not succeed")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errResultFailed) {
			os.Exit(1)
		}
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(command string, args []string) error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init connector")
		return err
	}
	defer (func() { _ = a.Close() })()

	switch command {
	case "sync-customers":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		scope := fs.String("scope", "", "scope id; empty syncs every scope")
		offset := fs.Int("offset", 0, "first customer to sync")
		limit := fs.Int("limit", 0, "page size; 0 uses the worker page size")
		_ = fs.Parse(args)
		return dispatched(ctx, a, &logger, a.Service.SyncCustomers(ctx, *scope, *offset, *limit))

	case "sync-orders":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		scope := fs.String("scope", "", "scope id; empty syncs every scope")
		_ = fs.Parse(args)
		return dispatched(ctx, a, &logger, a.Service.SyncOrders(ctx, *scope))

	case "sync-newsletter-recipients":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		scope := fs.String("scope", "", "scope id; empty syncs every scope")
		_ = fs.Parse(args)
		return dispatched(ctx, a, &logger, a.Service.SyncNewsletterRecipients(ctx, *scope))

	case "sync-products":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		scope := fs.String("scope", "", "scope id whose ftp credentials and products are used")
		limit := fs.Int("limit", 0, "products read per page")
		local := fs.Bool("local", false, "write the feed to the local feed directory instead of ftp")
		_ = fs.Parse(args)
		return report(a.Service.SyncProducts(ctx, *scope, *limit, *local))

	case "retry-failed-requests":
		return report(a.Service.RetryFailedRequests(ctx))

	case "export-failed-requests":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		out := fs.String("out", "failed_requests.xlsx", "report file")
		_ = fs.Parse(args)
		return report(a.Service.ExportFailedRequests(ctx, *out))

	case "import":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		table := fs.String("table", "", "scopes, customers, orders, newsletter-recipients or products")
		file := fs.String("file", "", "JSON array of entity snapshots; - reads stdin")
		_ = fs.Parse(args)
		return importFile(ctx, a.DB, *table, *file)

	case "dead-letters":
		return printDeadLetters(ctx, a)

	case "backup":
		path, err := database.NewBackupService(a.DB, cfg.Backup, logging.Component(&logger, "backup")).PerformBackup(ctx)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "connector-cli").Logger()

	return cfg, logger, closer, nil
}

// dispatched reports a sync trigger. Without redis nobody else will pick the
// jobs up, so they are handled before the command exits.
func dispatched(ctx context.Context, a *app.App, logger *zerolog.Logger, res service.Result) error {
	if err := report(res); err != nil || !a.InProcessQueue() {
		return err
	}
	handled, err := a.Drain(ctx)
	if err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}
	logger.Info().Int("jobs", handled).Msg("queued jobs handled in process")
	return nil
}

func report(res service.Result) error {
	if !res.OK {
		fmt.Fprintln(os.Stderr, res.Reason)
		return errResultFailed
	}
	fmt.Println(res.Reason)
	return nil
}

func importFile(ctx context.Context, db *database.DB, table, file string) error {
	if table == "" || file == "" {
		return errors.New("import needs -table and -file")
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	n, err := db.Import(ctx, strings.ReplaceAll(table, "-", "_"), r)
	if err != nil {
		return fmt.Errorf("import %s after %d document(s): %w", table, n, err)
	}
	fmt.Printf("%d %s imported\n", n, table)
	return nil
}

func printDeadLetters(ctx context.Context, a *app.App) error {
	letters, err := a.Queue.DeadLetters(ctx)
	if err != nil {
		return err
	}
	writeDeadLetters(os.Stdout, letters, a.InProcessQueue())
	return nil
}

// writeDeadLetters lists dead letters one per line. The in-process queue
// only holds this run's dead letters, so an empty list says so.
func writeDeadLetters(w io.Writer, letters []queue.DeadLetter, inProcess bool) {
	if len(letters) == 0 {
		fmt.Fprintln(w, "no dead letters")
		if inProcess {
			fmt.Fprintln(w, "note: dead letters persist only when redis is configured; without it they are lost when the worker exits")
		}
		return
	}
	for _, l := range letters {
		fmt.Fprintf(w, "%s\t%s\t%s\toffset=%d\t%s\n",
			l.FailedAt.Format("2006-01-02 15:04:05"), l.Job.Entity, l.Job.ScopeID, l.Job.Offset, l.Error)
	}
}
