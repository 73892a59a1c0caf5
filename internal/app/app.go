// Package app wires configuration, storage, the enrichment pipeline and
// the HTTP server into one runnable unit.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"tarschat/internal/presence"
	"tarschat/pkg/blob"
	"tarschat/pkg/chat"
	"tarschat/pkg/config"
	"tarschat/pkg/ingest"
	"tarschat/pkg/linkpreview"
	"tarschat/pkg/models"
	"tarschat/pkg/state"
	"tarschat/pkg/store"
	"tarschat/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	queue       *ingest.Queue
	stopWorkers chan struct{}

	srv *http.Server
}

// New initializes resources that do not require a running context (state
// dirs, DB, runtime keys, blob boundary, enrichment queue). It does not
// start workers or the HTTP server; call Run to start those and block
// until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	config.SetRuntime(buildRuntimeConfig(eff))

	// runtime folder layout under the DB path
	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to prepare state dirs under %s: %w", eff.DBPath, err)
	}

	// open store
	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}

	// blob boundary: sign upload tokens with the first signing key
	blobSecret := ""
	if keys := eff.Config.Security.SigningKeys; len(keys) > 0 {
		blobSecret = keys[0]
	}
	blob.Configure(blobSecret,
		time.Duration(eff.Config.Blob.UploadTokenTTL),
		int64(eff.Config.Blob.MaxUploadBytes))

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	a.setupEnrichment()
	return a, nil
}

// buildRuntimeConfig derives the runtime key material other packages
// query after startup. Backend API keys double as signing keys, matching
// how trusted services sign their own user headers.
func buildRuntimeConfig(eff config.EffectiveConfigResult) *config.RuntimeConfig {
	rc := &config.RuntimeConfig{
		SigningKeys:      map[string]struct{}{},
		WebhookSecret:    eff.Config.Security.WebhookSecret,
		WebhookTolerance: time.Duration(eff.Config.Security.WebhookTolerance),
	}
	for _, k := range eff.Config.Security.SigningKeys {
		rc.SigningKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		rc.SigningKeys[k] = struct{}{}
	}
	return rc
}

// setupEnrichment builds the bounded link preview queue and hooks the
// send path into it.
func (a *App) setupEnrichment() {
	pv := a.eff.Config.Preview
	a.queue = ingest.NewQueue(pv.QueueCapacity)

	chat.ScheduleLinkPreview = func(messageID, url string) error {
		return a.queue.TryEnqueue(messageID, url, time.Now().UTC().UnixNano())
	}
}

// startEnrichment launches the preview fetch workers.
func (a *App) startEnrichment() {
	pv := a.eff.Config.Preview

	var opts []linkpreview.Option
	if d := time.Duration(pv.FetchTimeout); d > 0 {
		opts = append(opts, linkpreview.WithTimeout(d))
	}
	if pv.UserAgent != "" {
		opts = append(opts, linkpreview.WithUserAgent(pv.UserAgent))
	}
	if n := int64(pv.MaxBodyBytes); n > 0 {
		opts = append(opts, linkpreview.WithMaxBodyBytes(n))
	}
	fetcher := linkpreview.NewFetcher(opts...)

	patch := func(messageID string, md *models.LinkMetadata) error {
		if md == nil {
			telemetry.CountPreview("miss")
			return nil
		}
		if err := chat.PatchLinkMetadata(messageID, *md); err != nil {
			telemetry.CountPreview("error")
			return err
		}
		telemetry.CountPreview("ok")
		return nil
	}

	a.stopWorkers = make(chan struct{})
	ingest.StartWorkers(a.queue, pv.Workers, a.stopWorkers, fetcher, patch)
}

// Run starts the enrichment workers, the presence sweeper and the HTTP
// server, and blocks until ctx is canceled or a fatal server error
// occurs.
func (a *App) Run(ctx context.Context) error {
	a.startEnrichment()

	sweepCancel, err := presence.Start(ctx, a.eff)
	if err != nil {
		return err
	}
	defer sweepCancel()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// shutdown stops workers and drains the enrichment queue, then closes
// the HTTP server and store.
func (a *App) shutdown() {
	if a.stopWorkers != nil {
		close(a.stopWorkers)
		a.stopWorkers = nil
	}
	if a.queue != nil {
		a.queue.CloseAndDrain()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(ctx)
	}
	_ = store.Close()
}
