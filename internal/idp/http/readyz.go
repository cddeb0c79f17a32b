package http

import (
	"context"
	"net/http"
	"time"

	"github.com/openauthority/idp/pkg/httpx"
	"github.com/openauthority/idp/pkg/idpsdk"
	"github.com/openauthority/idp/pkg/jwtx"
)

// ReadyzHandler checks the registry database and the token signer
// before reporting ready.
func ReadyzHandler(
	startTime time.Time,
	version string,
	ping func(ctx context.Context) error,
	signer *jwtx.EdDSASigner,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &idpsdk.HealthChecks{
			Database: "ok",
			Signer:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if signer == nil {
			checks.Signer = "error: no signing key loaded"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := idpsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
