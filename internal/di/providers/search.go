package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/config"
	"github.com/pulsecheckapp/pulsecheck-server/internal/logger"
	"github.com/pulsecheckapp/pulsecheck-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SessionIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index and wires it to the
// store so session writes keep the index in sync.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.NewSessionIndex(search.Options{
		DataPath: cfg.Data.SearchPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SessionIndex: index}, nil
}

// TriggerSearchReindexIfNeeded backfills the index from the store when the
// index is empty but sessions exist, for example after a mapping change
// wiped the on-disk index. Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}

	go func() {
		ctx := context.Background()
		count := 0
		for mc, err := range storeHandle.Microclimates.List(ctx) {
			if err != nil {
				log.Error("Search backfill read failed", "error", err)
				return
			}
			if indexErr := indexHandle.IndexMicroclimate(ctx, mc); indexErr != nil {
				log.Warn("Search backfill index failed", "session_id", mc.ID, "error", indexErr)
				continue
			}
			count++
		}
		if count > 0 {
			log.Info("Search backfill completed", "documents", count)
		}
	}()
}
