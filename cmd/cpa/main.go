package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgellow/cpa-front/internal"
	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/config"
	"github.com/dgellow/cpa-front/internal/log"
)

var BuildVersion = "dev"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, app *internal.CPAFront, args []string) error
}

var commands = []command{
	{"login", "sign in with username and password", runLogin},
	{"register", "create an account", runRegister},
	{"google-login", "sign in with Google in the browser", runGoogleLogin},
	{"logout", "forget the stored session", runLogout},
	{"status", "show the stored session", runStatus},
	{"subjects", "list subjects and their units", runSubjects},
	{"units", "list units", runUnits},
	{"materials", "search study materials", runMaterials},
	{"download", "download one or more materials by ID", runDownload},
	{"quiz", "show a question set and submit answers", runQuiz},
	{"mcp", "serve the catalog as MCP tools on stdio", runMCP},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: cpa [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-13s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	conf := flag.String("config", config.DefaultPath(), "path to config file")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "write an example config file at the specified path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	profile := flag.String("profile", "", "session profile to use (sqlite, redis and firestore storage)")
	flag.Usage = usage
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		os.Exit(0)
	}
	if *configInit != "" {
		if err := config.WriteExample(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote example config to %s\n", *configInit)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*conf, overrides{logLevel: *logLevel, profile: *profile})
	if err != nil {
		log.LogError("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := internal.NewCPAFront(ctx, cfg, internal.Options{
		Version:          BuildVersion,
		OnSessionExpired: sessionExpired,
	})
	if err != nil {
		log.LogError("Failed to start: %v", err)
		os.Exit(1)
	}

	err = cmd.run(ctx, app, args[1:])
	if cerr := app.Close(); cerr != nil {
		log.LogWarn("Failed to close session store: %v", cerr)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "cpa %s: %v\n", cmd.name, err)
		printFieldErrors(err)
		os.Exit(1)
	}
}

// overrides are config values set from flags
type overrides struct {
	logLevel string
	profile  string
}

// loadConfig reads the config and applies flag overrides before validating, so an
// override is held to the same rules as the file
func loadConfig(path string, o overrides) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.profile != "" {
		cfg.Session.Namespace = o.profile
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func sessionExpired(ctx context.Context, reason error) {
	log.LogDebugWithFields("cli", "Session expired", map[string]any{"reason": reason.Error()})
	fmt.Fprintln(os.Stderr, "Your session has expired. Run `cpa login` to sign in again.")
}

func printFieldErrors(err error) {
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) {
		return
	}
	for field, msgs := range httpErr.FieldErrors() {
		for _, m := range msgs {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, m)
		}
	}
}
