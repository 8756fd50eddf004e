// Command tempinbox is a terminal client for disposable mailboxes.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nhle/tempinbox/internal/app"
	"github.com/nhle/tempinbox/internal/content"
	"github.com/nhle/tempinbox/internal/credential"
	"github.com/nhle/tempinbox/internal/gate"
	"github.com/nhle/tempinbox/internal/logging"
	"github.com/nhle/tempinbox/internal/model"
	"github.com/nhle/tempinbox/internal/provider"
	"github.com/nhle/tempinbox/internal/provider/mailtm"
	"github.com/nhle/tempinbox/internal/provider/rapidapi"
	"github.com/nhle/tempinbox/internal/provider/rest"
	"github.com/nhle/tempinbox/internal/session"
	"github.com/nhle/tempinbox/internal/store"
	appsync "github.com/nhle/tempinbox/internal/sync"
	"github.com/nhle/tempinbox/internal/ui/settings"
)

// retiredRetention is how long retired mailboxes stay in the local history.
const retiredRetention = 30 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tempinbox: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tempinbox", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to the YAML configuration file")
	debug := flags.Bool("debug", false, "log at debug level")
	flags.String("log-file", "", "write logs to this file instead of the configured one")
	flags.Bool("no-resume", false, "start with a new mailbox instead of the saved one")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	v := model.NewViper()
	if err := v.BindPFlag("log.file", flags.Lookup("log-file")); err != nil {
		return err
	}
	cfg, err := model.LoadConfigWith(v, *configPath)
	if err != nil {
		return err
	}
	if noResume, _ := flags.GetBool("no-resume"); noResume {
		cfg.Session.Persist = false
	}

	log, syncLog, err := logging.New(logging.Options{
		File:  cfg.Log.File,
		Level: cfg.Log.Level,
		Debug: *debug,
	})
	if err != nil {
		return err
	}
	defer syncLog()

	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if n, err := db.PurgeRetired(context.Background(), time.Now().Add(-retiredRetention)); err != nil {
		log.Warnw("purging mailbox history failed", "error", err)
	} else if n > 0 {
		log.Infow("purged retired mailboxes", "count", n)
	}

	creds, err := credential.Open(model.ConfigDir())
	if err != nil {
		log.Warnw("keyring unavailable, secrets will not be stored", "error", err)
	}

	apiKey := cfg.Providers.Fallback.APIKey
	if !model.FallbackKeyConfigured(apiKey) && creds != nil {
		if stored, err := creds.APIKey(); err != nil {
			log.Warnw("reading API key from keyring failed", "error", err)
		} else {
			apiKey = stored
		}
	}

	opts := rest.Options{
		Timeout:         cfg.RequestTimeout(),
		BreakerFailures: uint32(cfg.Network.BreakerFailures),
		BreakerCooldown: 30 * time.Second,
		MaxRetries:      2,
		Logger:          log,
	}
	primary := mailtm.NewAdapter(cfg.Providers.Primary.BaseURL, opts)
	fallback := rapidapi.NewAdapter(
		cfg.Providers.Fallback.BaseURL,
		cfg.Providers.Fallback.Host,
		apiKey,
		opts,
	)
	registry := provider.NewRegistry(primary, fallback)

	sessions := session.NewStore()
	if creds != nil {
		vault := creds.Vault()
		if cfg.Session.Persist {
			if ok, err := session.Resume(sessions, vault); err != nil {
				log.Warnw("resuming session failed", "error", err)
			} else if ok {
				log.Infow("resumed saved mailbox")
			}
			session.Persist(sessions, vault, log)
		} else if err := vault.Delete(); err != nil {
			log.Warnw("clearing saved session failed", "error", err)
		}
	}

	g := gate.New(sessions, registry, gate.Config{
		RefreshCooldown:   cfg.RefreshCooldown(),
		ProvisionCooldown: cfg.ProvisionCooldown(),
		Logger:            log,
	})
	defer g.Close()

	syncer := appsync.New(g, appsync.Config{
		Interval:    cfg.PollInterval(),
		MinDuration: cfg.MinRefresh(),
		Seen:        db,
		Logger:      log,
	})
	defer syncer.Stop()

	deps := app.Deps{
		Gate:     g,
		Sync:     syncer,
		Store:    db,
		Catalog:  content.Default(),
		OnAPIKey: fallback.SetAPIKey,
		Settings: settings.Info{
			ConfigPath:     *configPath,
			LogFile:        cfg.Log.File,
			PersistSession: cfg.Session.Persist,
			KeyConfigured:  model.FallbackKeyConfigured(apiKey),
		},
		Logger:   log,
	}
	deps.ConfigSaver = &configWriter{path: *configPath, cfg: cfg}
	if creds != nil {
		deps.KeySaver = creds
	}

	log.Infow("starting", "config", *configPath, "db", cfg.Storage.DBPath)
	p := tea.NewProgram(app.New(deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// configWriter saves settings changed in the UI back to the config file.
type configWriter struct {
	path string
	cfg  *model.AppConfig
}

func (w *configWriter) SetPersistSession(on bool) error {
	w.cfg.Session.Persist = on
	return model.SaveConfig(w.path, w.cfg)
}
