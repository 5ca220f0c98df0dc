// Package main is the entrypoint for the coordination hub (binary name "coordhub").
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/piston-labs/coordination-hub/internal/config"
	"github.com/piston-labs/coordination-hub/internal/server"
	"github.com/piston-labs/coordination-hub/pkg/bootstrap"
	"github.com/piston-labs/coordination-hub/pkg/commsutil"
	"github.com/piston-labs/coordination-hub/pkg/db"
	"github.com/piston-labs/coordination-hub/pkg/dispatcher"
)

const usage = `Usage: coordhub [command]
       coordhub serve                       Start the hub (NATS, HTTP, coordination store).
       coordhub migrate up                  Run database migrations.
       coordhub migrate down                Roll back (not supported; migrations are forward-only).
       coordhub migrate status              Show migration status.
       coordhub ensure-db [name]            Create database if missing (default name: coordination_hub_test). Uses DATABASE_URL host/user.
       coordhub clear                       Truncate all hub tables; schema is preserved.
       coordhub seed [file]                 Seed agents and peers from a bootstrap file (JSON, YAML or TOML).
       coordhub send <envelope> [requester] Send an envelope to a running hub over NATS.
       coordhub parse <envelope>            Explain an envelope without executing it.
       coordhub vocab [domain]              Print the operation vocabulary, optionally for one domain letter.

Commands:
  serve           (default) Start the coordination hub.
  migrate up      Run database migrations only.
  migrate down    Roll back last migration (not supported).
  migrate status  Show current migration status.
  ensure-db [name] Create database on same host as DATABASE_URL; then run tests with that URL.
  clear           Truncate hub data; schema preserved.
  seed [file]     Seed from bootstrap file (default HUB_BOOTSTRAP_FILE or config/bootstrap.*).
  send            Flags: -r/--requester, --subject, --timeout, --json.
  parse, vocab    Work offline; --json prints machine-readable output.

Environment: DATABASE_URL (required for serve and DB commands), MIGRATION_PATH, COMMS_URL, HUB_SUBJECT,
HUB_ID, PROTOCOL_VERSION, HUB_HTTP_ADDR / HTTP_PORT, HUB_BOOTSTRAP_FILE. See README.
`

// errUsage marks a command-line mistake; main prints usage and exits 2.
var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n%s", err, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "coordhub: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			return fmt.Errorf("migrate: require subcommand (up, down, status): %w", errUsage)
		}
		switch sub := args[1]; sub {
		case "up":
			return wrap("migrate up", runMigrateUp(stdout))
		case "status":
			return wrap("migrate status", runMigrateStatus(stdout))
		case "down":
			db.MigrationDown(stdout)
			return nil
		default:
			return fmt.Errorf("migrate: unknown subcommand %q (use up, down, status): %w", sub, errUsage)
		}
	case "clear":
		return wrap("clear", runClear(stdout))
	case "seed":
		file := ""
		if len(args) > 1 {
			file = args[1]
		}
		return wrap("seed", runSeed(file, stdout))
	case "ensure-db":
		name := "coordination_hub_test"
		if len(args) > 1 && args[1] != "" {
			name = args[1]
		}
		return wrap("ensure-db", runEnsureDB(name, stdout))
	case "send":
		return runSend(args[1:], stdout, stderr)
	case "parse":
		return runParse(args[1:], stdout, stderr)
	case "vocab":
		return runVocab(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	case "serve", "":
		return server.Run()
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func wrap(cmd string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func loadDBConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrateUp(stdout io.Writer) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrations(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	fmt.Fprintf(stdout, "Applied %d migration files from %s.\n", len(migrations), cfg.MigrationPath)
	return nil
}

func runMigrateStatus(stdout io.Writer) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath, stdout)
}

func runClear(stdout io.Writer) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearHub(ctx, pool); err != nil {
		return fmt.Errorf("clear hub: %w", err)
	}
	fmt.Fprintln(stdout, "Hub tables cleared.")
	return nil
}

func runEnsureDB(name string, stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + name
	if err := db.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Database %q is ready.\n", name)
	return nil
}

func runSeed(file string, stdout io.Writer) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.BootstrapFile
	}
	bootstrapCfg, err := bootstrap.LoadBootstrapConfig(file)
	if err != nil {
		return fmt.Errorf("load bootstrap: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	repo := db.NewRepository(pool, &db.RepositoryOpts{ClaimTTL: cfg.ClaimTTL, LockTTL: cfg.LockTTL})
	res, err := db.SeedBootstrap(ctx, repo, bootstrapCfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Seeded %d agents and %d peers from %s.\n", res.Agents, res.Peers, bootstrapCfg.Name)
	return nil
}

func newFlagSet(name string, stderr io.Writer) (*pflag.FlagSet, *bool) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print machine-readable JSON")
	return fs, asJSON
}

func runSend(args []string, stdout, stderr io.Writer) error {
	fs, asJSON := newFlagSet("send", stderr)
	requester := fs.StringP("requester", "r", "", "agent the operations run as (default: envelope sender)")
	subject := fs.String("subject", "", "hub request subject (default: HUB_SUBJECT)")
	timeout := fs.Duration("timeout", 0, "request timeout (default: REQUEST_TIMEOUT)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("send: %v: %w", err, errUsage)
	}
	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		return fmt.Errorf("send: require <envelope> [requester]: %w", errUsage)
	}
	if len(rest) == 2 && *requester == "" {
		*requester = rest[1]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("send: load config: %w", err)
	}
	if *subject == "" {
		*subject = cfg.HubSubject
	}
	if *timeout <= 0 {
		*timeout = cfg.RequestTimeout
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli", nil)
	if err != nil {
		return fmt.Errorf("send: connect %s: %w", cfg.COMMSURL, err)
	}
	defer nc.Close()

	params, err := commsutil.EncodePayload(dispatcher.SendParams{Envelope: rest[0], RequesterID: *requester})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	req := &dispatcher.HubRequest{ID: "cli", Method: "send", Params: params}
	var resp struct {
		Ok     bool                     `json:"ok"`
		Result *dispatcher.SendResponse `json:"result"`
		Error  *dispatcher.ErrorDetail  `json:"error"`
	}
	if err := commsutil.RequestJSON(nc, *subject, req, &resp, commsutil.WithTimeout(*timeout)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if *asJSON {
		return printJSON(stdout, resp)
	}
	if !resp.Ok {
		return fmt.Errorf("send: %s: %s", resp.Error.Code, resp.Error.Message)
	}
	fmt.Fprintln(stdout, resp.Result.ResponseEnvelope)
	return nil
}

func runParse(args []string, stdout, stderr io.Writer) error {
	fs, asJSON := newFlagSet("parse", stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse: %v: %w", err, errUsage)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("parse: require exactly one <envelope>: %w", errUsage)
	}

	ex := dispatcher.NewBridge(nil, nil).Parse(fs.Arg(0))
	if *asJSON {
		return printJSON(stdout, ex)
	}
	if !ex.Valid {
		return fmt.Errorf("parse: %s", ex.Error)
	}

	fmt.Fprintf(stdout, "from: %s\nto:   %s (%s)\nlayer: %d (%s)\n", ex.From, ex.To, ex.Recipient, ex.Layer, ex.LayerName)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for i, op := range ex.Operations {
		connector := ""
		if i > 0 && i-1 < len(ex.Connectors) {
			connector = ex.Connectors[i-1]
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s.%s\t%v\t%s\n", connector, op.Code, op.DomainName, op.Name, op.Params, executableLabel(op.Executable))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if ex.Error != "" {
		fmt.Fprintf(stdout, "error: %s\n", ex.Error)
	}
	return nil
}

func executableLabel(ok bool) string {
	if ok {
		return "executable"
	}
	return "not executable"
}

func runVocab(args []string, stdout, stderr io.Writer) error {
	fs, asJSON := newFlagSet("vocab", stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("vocab: %v: %w", err, errUsage)
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("vocab: at most one [domain]: %w", errUsage)
	}

	entries := dispatcher.NewBridge(nil, nil).Vocabulary(fs.Arg(0))
	if *asJSON {
		return printJSON(stdout, entries)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tDOMAIN\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Code, e.DomainName, e.Name)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
