package admission

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nodebridge/rpc-gateway/pkg/app"
)

func newTestRouter(store *app.Store) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := chi.NewRouter()
	r.With(Middleware(store, logger)).Get("/{chain}/{section}/{key}/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestMiddleware_MissingKey(t *testing.T) {
	r := newTestRouter(app.NewStore(nil))

	req := httptest.NewRequest(http.MethodGet, "/ethereum/exec//eth_blockNumber", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// chi matches the empty segment as an empty {key}, so this exercises the
	// empty-key check; any 4xx rejection is accepted here.
	if w.Code < 400 {
		t.Errorf("status = %d, want 4xx", w.Code)
	}
}

func TestMiddleware_InvalidAPIKeyFormat(t *testing.T) {
	r := newTestRouter(app.NewStore(nil))

	req := httptest.NewRequest(http.MethodGet, "/ethereum/exec/not-a-uuid/eth_blockNumber", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
