package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abrezinsky/ecobingo/internal/app"
	"github.com/abrezinsky/ecobingo/internal/config"
	"github.com/abrezinsky/ecobingo/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// showLogo prints the startup banner
func showLogo() {
	width := 50
	border := strings.Repeat("═", width)
	logo := []string{
		"   ___         ___  _                  ",
		"  | __|__ ___ | _ )(_)_ _  __ _ ___    ",
		"  | _|/ _/ _ \\| _ \\| | ' \\/ _` / _ \\   ",
		"  |___\\__\\___/|___/|_|_||_\\__, \\___/   ",
		"                          |___/        ",
	}

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		fmt.Printf("  %s║%s%-*s%s║%s\n", cyan, green, width, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n\n", cyan, border, reset)
}

func main() {
	envFile := flag.String("env", ".env", "Environment file to load before ECOBINGO_* variables")
	addr := flag.String("addr", "", "HTTP listen address (overrides ECOBINGO_LISTEN_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides ECOBINGO_DB_PATH)")
	logLevel := flag.String("loglevel", "", "Log level (debug, info, warn, error)")
	seed := flag.Bool("seed", false, "Load the task catalog and default users on startup")
	resetMonthly := flag.Bool("reset-monthly", false, "Reset monthly points and exit")
	force := flag.Bool("force", false, "With -reset-monthly, reset even when today is not the 1st")
	issueToken := flag.String("issue-token", "", "Print a bearer token for an existing user and exit")
	noConsole := flag.Bool("noconsole", false, "Disable console commands")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `EcoBingo - sustainability task bingo

Usage:
  ecobingo [options]

Options:
  -env string          Environment file (default ".env")
  -addr string         HTTP listen address (default ":8080")
  -db string           SQLite database path (default "ecobingo.db")
  -loglevel str        Log level: debug, info, warn, error (default "info")
  -seed                Load the task catalog and default users on startup
  -reset-monthly       Reset monthly points and exit (only on the 1st unless -force)
  -force               Force -reset-monthly on any day
  -issue-token user    Print a bearer token for an existing user and exit
  -noconsole           Disable console commands
  -version             Show version and exit
  -help                Show this help message

Every option can also be set with an ECOBINGO_* environment variable,
e.g. ECOBINGO_FRAUD_THRESHOLD=90 or ECOBINGO_REDIS_ADDR=localhost:6379.

Console commands (type and press Enter):
  o              Open the leaderboard in a browser
  h              Toggle HTTP request logging
  l              Cycle log level (debug → info → warn → error)
  q              Quit server
  ?              Show console help

Examples:
  ecobingo -seed                           # First run with the built-in catalog
  ecobingo -issue-token gamekeeper         # Token for the reviewer account
  ecobingo -reset-monthly                  # Cron job on the 1st of the month
  ecobingo -addr :80 -db /data/eco.db      # Production example

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("ecobingo %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	appLog := logger.NewWithLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFormat == config.LogFormatJSON {
		appLog = logger.NewJSON(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	}

	a, err := app.New(appLog, cfg)
	if err != nil {
		log.Fatal("Failed to initialize application: ", err)
	}
	defer a.Close()

	ctx := context.Background()

	if *seed {
		n, users, err := a.Seed(ctx)
		if err != nil {
			a.Close()
			log.Fatal("Seeding failed: ", err)
		}
		names := make([]string, len(users))
		for i, u := range users {
			names[i] = fmt.Sprintf("%s (%s)", u.Username, u.Role)
		}
		appLog.Info("Seed complete", "tasks", n, "users", strings.Join(names, ", "))
	}

	if *issueToken != "" {
		token, err := a.IssueToken(ctx, *issueToken)
		if err != nil {
			a.Close()
			log.Fatal("Cannot issue token: ", err)
		}
		fmt.Println(token)
		return
	}

	if *resetMonthly {
		res, err := a.ResetMonthly(ctx, *force)
		if err != nil {
			a.Close()
			log.Fatal("Monthly reset failed: ", err)
		}
		if !res.Reset {
			fmt.Printf("%sNot the first of the month; nothing reset (use -force)%s\n", yellow, reset)
			return
		}
		fmt.Printf("%sMonthly points reset for %d users%s\n", green, res.Rows, reset)
		return
	}

	showLogo()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(cfg.ListenAddr)
	}()

	if !*noConsole && stdinIsTerminal() {
		printConsoleHelp()
		go newConsole(appLog, a.BaseURL(), stop).listen(os.Stdin)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			a.Close()
			log.Fatal(err)
		}
	case <-sigCtx.Done():
		fmt.Printf("%sShutting down server...%s\n", yellow, reset)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("%sShutdown error: %v%s\n", red, err, reset)
		}
	}
}
