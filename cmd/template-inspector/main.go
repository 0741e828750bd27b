package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/tallpine/kioskdocs/internal/gcp"
	"github.com/tallpine/kioskdocs/internal/logging"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/services"
)

var (
	inspector *services.TemplateInspector
	once      sync.Once
	initErr   error
)

func init() {
	logging.Setup(logging.Config{
		Level:  gcp.GetEnv("LOG_LEVEL", "info"),
		Format: gcp.GetEnv("LOG_FORMAT", "json"),
	})

	functions.CloudEvent("InspectTemplate", inspectTemplate)
}

func main() {}

// inspectTemplate runs on every object finalized in the templates bucket.
func inspectTemplate(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg services.Config
		if cfg, initErr = services.LoadConfig(); initErr != nil {
			return
		}
		logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		var rt *services.Runtime
		if rt, initErr = services.NewRuntime(context.Background(), cfg); initErr == nil {
			inspector = rt.Inspector
		}
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "eventId", e.ID())
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The report is logged inside Process; only failure matters here.
	_, err := inspector.Process(ctx, gcsEvent)
	return err
}
