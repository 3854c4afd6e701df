package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/onnwee/reelbot/catalog"
	"github.com/onnwee/reelbot/indexer"
)

// CatalogReader is the read side of the catalog used by health checks and admin endpoints.
type CatalogReader interface {
	CountMovies(ctx context.Context) (int, error)
	ListTitles(ctx context.Context) ([]catalog.Title, error)
}

// Refresher re-runs the catalog indexer on demand.
type Refresher interface {
	Refresh(ctx context.Context) (indexer.Result, error)
}

// PendingCounter reports armed retention deletions.
type PendingCounter interface {
	Pending() int
}

// Deps are the collaborators served over HTTP.
type Deps struct {
	DB         *sql.DB
	Catalog    CatalogReader
	Indexer    Refresher
	Retention  PendingCounter
	AdminToken string
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db        *sql.DB
	catalog   CatalogReader
	indexer   Refresher
	retention PendingCounter
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		db:        deps.DB,
		catalog:   deps.Catalog,
		indexer:   deps.Indexer,
		retention: deps.Retention,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
