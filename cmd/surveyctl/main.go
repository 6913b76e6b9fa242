// Command surveyctl inspects and adjusts survey server state from the
// command line: user profiles, completions and the published catalog.
//
// It reads the same environment as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/surveypro/internal"
	"github.com/DukeRupert/surveypro/internal/catalog"
	"github.com/DukeRupert/surveypro/internal/kv"
	"github.com/DukeRupert/surveypro/internal/service"
	"github.com/DukeRupert/surveypro/internal/storage"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// app holds the services a command runs against.
type app struct {
	profiles service.ProfileService
	quota    service.QuotaService
	surveys  service.SurveyService
	browse   service.BrowseService
	loader   service.CatalogLoader

	// catalogStore is nil when the catalog is served over HTTP.
	catalogStore storage.Storage
	catalogKey   string

	close func() error
}

// appFactory builds the app for one command invocation.
type appFactory func(ctx context.Context) (*app, error)

func main() {
	root := newRootCmd(newApp, os.Stdout)
	if err := root.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

// newApp wires the services from the environment.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	// Keep stdout for command output.
	logger := internal.NewLogger(os.Stderr, cfg.Env, "warn")

	store, err := internal.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store initialization failed: %w", err)
	}

	a := &app{catalogKey: cfg.CatalogKey, close: store.Close}
	if a.catalogKey == "" {
		a.catalogKey = storage.DefaultCatalogKey
	}

	var source catalog.Source
	if cfg.CatalogSource == "http" {
		source, err = internal.NewCatalogSource(cfg, logger)
	} else {
		a.catalogStore, err = internal.OpenCatalogStorage(cfg, logger)
		source = catalog.NewStorageSource(a.catalogStore, a.catalogKey)
	}
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("catalog source initialization failed: %w", err)
	}

	loc, err := cfg.QuotaLocation()
	if err != nil {
		store.Close()
		return nil, err
	}

	a.wire(store, catalog.NewLoader(source, cfg.CatalogPolicy(), logger), loc, logger)
	return a, nil
}

// wire builds the service graph the same way the server does.
func (a *app) wire(store kv.Store, loader service.CatalogLoader, loc *time.Location, logger *slog.Logger) {
	a.loader = loader
	a.profiles = service.NewProfileService(store, logger)
	completions := service.NewCompletionService(store, loc, logger)
	a.quota = service.NewQuotaService(a.profiles, completions, logger)
	a.surveys = service.NewSurveyService(loader, a.profiles, completions, logger)
	a.browse = service.NewBrowseService(a.profiles, completions, a.quota, a.surveys, logger)
}

// withApp runs fn against a freshly built app and closes it afterwards.
func withApp(cmd *cobra.Command, factory appFactory, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := factory(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if a.close != nil {
			_ = a.close()
		}
	}()
	return fn(ctx, a)
}

// errNoCatalogStorage is returned by publish when the catalog is served
// over HTTP.
var errNoCatalogStorage = errors.New("catalog publish needs CATALOG_SOURCE=local or r2")
