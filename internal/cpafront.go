package internal

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/dgellow/cpa-front/internal/academy"
	"github.com/dgellow/cpa-front/internal/apiclient"
	"github.com/dgellow/cpa-front/internal/config"
	"github.com/dgellow/cpa-front/internal/download"
	"github.com/dgellow/cpa-front/internal/googleauth"
	"github.com/dgellow/cpa-front/internal/log"
	"github.com/dgellow/cpa-front/internal/mcptools"
	"github.com/dgellow/cpa-front/internal/opener"
	"github.com/dgellow/cpa-front/internal/storage"
)

// Options are the process-level settings that do not come from the config file
type Options struct {
	Version string
	// OnSessionExpired is called when a call ends because the user must sign in again
	OnSessionExpired func(ctx context.Context, reason error)
	// Opener overrides the system opener
	Opener opener.Opener
}

// CPAFront holds the wired client application
type CPAFront struct {
	config     config.Config
	version    string
	store      storage.Store
	client     *apiclient.Client
	academy    *academy.Service
	downloader *download.Downloader
	opener     opener.Opener
}

// NewCPAFront builds the application with all dependencies
func NewCPAFront(ctx context.Context, cfg config.Config, opts Options) (*CPAFront, error) {
	if err := log.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("invalid log config: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Session.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	baseURL := config.ResolveBaseURL(&cfg)
	log.LogDebugWithFields("cpafront", "Building client", map[string]any{
		"baseURL": baseURL,
		"storage": cfg.Session.Storage,
		"version": opts.Version,
	})

	clientOpts := []apiclient.Option{
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithRefreshPath(cfg.API.RefreshPath),
		apiclient.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		apiclient.WithUserAgent(userAgent(cfg, opts.Version)),
	}
	if opts.OnSessionExpired != nil {
		clientOpts = append(clientOpts, apiclient.WithSessionExpired(opts.OnSessionExpired))
	}
	client := apiclient.New(baseURL, store, clientOpts...)

	op := opts.Opener
	if op == nil {
		op = opener.NewSystem()
	}

	dlOpts := download.Options{Saver: download.NewDirSaver(cfg.Downloads.Dir)}
	if cfg.Downloads.Navigator == config.NavigatorBrowser {
		dlOpts.Navigator = &download.BrowserNavigator{Opener: op}
	}
	if cfg.Downloads.OpenAfterSave {
		dlOpts.Opener = op
	}

	return &CPAFront{
		config:     cfg,
		version:    opts.Version,
		store:      store,
		client:     client,
		academy:    academy.New(client, store),
		downloader: download.New(client, dlOpts),
		opener:     op,
	}, nil
}

func userAgent(cfg config.Config, version string) string {
	if cfg.API.UserAgent != "" {
		return cfg.API.UserAgent
	}
	if version == "" {
		version = "dev"
	}
	return "cpa/" + version
}

func (c *CPAFront) Config() config.Config { return c.config }
func (c *CPAFront) Client() *apiclient.Client { return c.client }
func (c *CPAFront) Academy() *academy.Service { return c.academy }
func (c *CPAFront) Downloader() *download.Downloader { return c.downloader }

// GoogleFlow returns a sign-in flow, or an error when Google is not configured
func (c *CPAFront) GoogleFlow() (*googleauth.Flow, error) {
	g := c.config.Google
	if g == nil {
		return nil, fmt.Errorf("google sign-in is not configured: add a google section to the config")
	}
	return googleauth.NewFlow(googleauth.Config{
		ClientID:     g.ClientID,
		ClientSecret: string(g.ClientSecret),
		CallbackPort: g.CallbackPort,
	}, c.opener)
}

// MCPServer returns an MCP server exposing the catalog tools
func (c *CPAFront) MCPServer() *mcpserver.MCPServer {
	return mcptools.NewServer(mcptools.New(c.academy, c.downloader), c.version)
}

// Profiles lists the session namespaces kept by the store. ok is false for backends
// that hold a single session.
func (c *CPAFront) Profiles(ctx context.Context) (names []string, ok bool, err error) {
	return storage.Namespaces(ctx, c.store)
}

// Close releases the session store
func (c *CPAFront) Close() error {
	return c.store.Close()
}
