package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/tallpine/kioskdocs/internal/gcp"
	"github.com/tallpine/kioskdocs/internal/httpapi"
	"github.com/tallpine/kioskdocs/internal/logging"
	"github.com/tallpine/kioskdocs/internal/services"
)

var (
	router  http.Handler
	once    sync.Once
	initErr error
)

func init() {
	logging.Setup(logging.Config{
		Level:  gcp.GetEnv("LOG_LEVEL", "info"),
		Format: gcp.GetEnv("LOG_FORMAT", "json"),
	})

	functions.HTTP("HandleDocuments", handleDocuments)
}

func main() {}

func setup() (http.Handler, error) {
	cfg, err := services.LoadConfig()
	if err != nil {
		return nil, err
	}
	// .env may carry different log settings than the process environment.
	logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	rt, err := services.NewRuntime(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return httpapi.Server{Documents: rt.Documents, Intake: rt.Intake}.Router(), nil
}

// handleDocuments serves the kiosk API. Clients are created on the first
// request and reused for the life of the instance.
func handleDocuments(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		router, initErr = setup()
	})
	if initErr != nil {
		slog.Error("Critical: document service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}
