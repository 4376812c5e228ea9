package main

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leakwatch/leakwatch/internal/alerts"
	"github.com/leakwatch/leakwatch/internal/config"
	"github.com/leakwatch/leakwatch/internal/connectors"
	"github.com/leakwatch/leakwatch/internal/integrations"
	"github.com/leakwatch/leakwatch/internal/pipeline"
	"github.com/leakwatch/leakwatch/internal/secrets"
	"github.com/leakwatch/leakwatch/internal/store"
)

// app bundles the wired service graph shared by serve, worker, and the
// one-off run commands.
type app struct {
	store        *store.Store
	runner       *pipeline.Runner
	dispatcher   *alerts.Dispatcher
	connectors   *connectors.Registry
	integrations *integrations.Registry
	cipher       *secrets.Cipher
}

func buildApp(cfg config.Config, pool *pgxpool.Pool) (*app, error) {
	cipher, err := secrets.NewCipher(cfg.MasterKey)
	if err != nil {
		return nil, err
	}

	st := store.New(pool)
	connectorReg := connectors.Default(nil)
	integrationReg := integrations.Default(nil)

	dispatcher := alerts.NewDispatcher(
		&alerts.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		},
		&alerts.TwilioSMS{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFromNumber,
		},
		&alerts.WebhookClient{},
	)

	return &app{
		store:        st,
		runner:       pipeline.NewRunner(st, connectorReg, cipher, dispatcher),
		dispatcher:   dispatcher,
		connectors:   connectorReg,
		integrations: integrationReg,
		cipher:       cipher,
	}, nil
}
