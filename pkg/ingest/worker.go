package ingest

import (
	"context"

	"tarschat/pkg/logger"
	"tarschat/pkg/models"
)

// Fetcher retrieves link metadata for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.LinkMetadata, error)
}

// PatchFunc attaches fetched metadata to a message.
type PatchFunc func(messageID string, md *models.LinkMetadata) error

// EnrichHandler returns a RunWorker handler that fetches each task's URL
// and patches the owning message. Fetch and patch failures are logged
// and dropped; enrichment never retries.
func EnrichHandler(f Fetcher, patch PatchFunc) func(*Task) error {
	return func(t *Task) error {
		if t == nil || len(t.URL) == 0 {
			return nil
		}
		url := string(t.URL)
		md, err := f.Fetch(context.Background(), url)
		if err != nil {
			logger.Debug("link_preview_fetch_failed", "msg", t.MessageID, "url", url, "error", err)
			return nil
		}
		if md == nil {
			return nil
		}
		if err := patch(t.MessageID, md); err != nil {
			logger.Warn("link_preview_patch_failed", "msg", t.MessageID, "error", err)
		}
		return nil
	}
}

// StartWorkers launches n workers draining q with the enrich handler.
// Workers stop when stop is closed or the queue is closed.
func StartWorkers(q *Queue, n int, stop <-chan struct{}, f Fetcher, patch PatchFunc) {
	if n <= 0 {
		n = 1
	}
	h := EnrichHandler(f, patch)
	for i := 0; i < n; i++ {
		go q.RunWorker(stop, h)
	}
}
