package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/hvacform/bootstrap"
	"github.com/kbukum/hvacform/component"
	"github.com/kbukum/hvacform/contact"
	"github.com/kbukum/hvacform/database"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/server"
	"github.com/kbukum/hvacform/sse"
	"github.com/kbukum/hvacform/storage"
	"github.com/kbukum/hvacform/transcription"
	"github.com/kbukum/hvacform/voicenote"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the contact form and voice note API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configFile, envFile)
		if err != nil {
			return err
		}
		app, err := newServeApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return app.Run(cmd.Context())
	},
}

// newServeApp wires the database, archive storage, voice note sessions,
// the contact form service and the HTTP server into one App.
func newServeApp(ctx context.Context, cfg *Config, opts ...bootstrap.Option) (*bootstrap.App[*Config], error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}

	shutdownTelemetry, err := observability.Init(ctx, cfg.Observability, observability.Resource{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
	})
	if err != nil {
		return nil, err
	}
	metrics := observability.DefaultMetrics()

	provider, err := newProvider(cfg, metrics, app.Logger)
	if err != nil {
		return nil, err
	}

	var db *database.Component
	if cfg.Database.Enabled {
		db = database.NewComponent(cfg.Database, app.Logger).WithAutoMigrate(contact.Models()...)
		if err := app.RegisterComponent(db); err != nil {
			return nil, err
		}
	}
	store := storage.NewComponent(cfg.Storage, app.Logger)
	if err := app.RegisterComponent(store); err != nil {
		return nil, err
	}
	events := sse.NewComponent("/api/v1/voice-notes/sessions/:id/events")
	if err := app.RegisterComponent(events); err != nil {
		return nil, err
	}

	srv := server.New(cfg.Server, app.Logger)
	httpServer := server.NewComponent(srv)

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		managerOpts := []voicenote.ManagerOption{
			voicenote.WithManagerMetrics(metrics),
			voicenote.WithManagerLogger(a.Logger),
			voicenote.WithManagerPublisher(events.Hub()),
		}
		archive, err := newArchive(cfg.VoiceNote.Archive, store.Storage())
		if err != nil {
			return err
		}
		if archive != nil {
			managerOpts = append(managerOpts, voicenote.WithManagerArchive(archive))
			a.Summary.Note("recordings archived under %q (encrypted=%t)", cfg.VoiceNote.Archive.Prefix, cfg.VoiceNote.Archive.Encrypt)
		}
		manager := voicenote.NewManager(cfg.VoiceNote, transcription.TextOnly(provider), managerOpts...)
		if err := a.RegisterComponent(manager); err != nil {
			return err
		}
		if err := a.Components.StartAll(ctx); err != nil {
			return err
		}

		var sqlDB *database.DB
		if db != nil {
			sqlDB = db.DB()
		}
		repo, err := newRepository(cfg.Contact, sqlDB, a.Logger)
		if err != nil {
			return err
		}
		svc := contact.NewService(repo, contact.WithMetrics(metrics), contact.WithLogger(a.Logger))

		api := srv.GinEngine().Group("/api/v1")
		notes := voicenote.NewHandler(manager).WithEventStream(events.Hub())
		if archive != nil {
			notes.WithRecordings(archive)
		}
		notes.RegisterRoutes(api)
		contact.NewHandler(svc, cfg.Server.SubmissionsPerMinute).RegisterRoutes(api)
		srv.RegisterDefaultEndpoints(a.Name, func(ctx context.Context) []component.Health {
			return append(a.Components.HealthAll(ctx), httpServer.Health(ctx))
		})

		for _, r := range srv.GinEngine().Routes() {
			a.Summary.TrackRoute(r.Method, r.Path, r.Handler)
		}
		a.Summary.Note("transcription provider: %s", provider.Name())
		a.Summary.Note("submission store: %s", cfg.Contact.Store)
		return nil
	})

	app.OnReady(func(ctx context.Context) error {
		if err := httpServer.Start(ctx); err != nil {
			return err
		}
		app.Logger.Info("listening", map[string]interface{}{"addr": srv.Addr()})
		return nil
	})
	app.OnStop(
		httpServer.Stop,
		func(ctx context.Context) error { return shutdownTelemetry(ctx) },
	)
	return app, nil
}
