package brokerrest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

// ClientConnectionFinder resolves a logical client name to its live
// connection id, "" when absent.
type ClientConnectionFinder interface {
	Find(ctx context.Context, name string) (string, error)
}

// Routes builds the ops router: a health probe and a client connection
// lookup for debugging rendezvous issues.
func Routes(service brokercli.Service, clients ClientConnectionFinder) chi.Router {
	router := chi.NewRouter()
	Middlewares(service, router)

	router.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": service.Name,
			"version": service.Version,
		})
	})

	router.Get("/connections/clients/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		connectionID, err := clients.Find(req.Context(), name)
		if err != nil {
			zerolog.Ctx(req.Context()).Error().Err(err).Str("connection_name", name).Msg("client connection lookup failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		if connectionID == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no client connection found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name":         name,
			"connectionId": connectionID,
		})
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
