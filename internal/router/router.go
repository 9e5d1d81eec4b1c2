package router

import (
	"net/http"

	"food-compliance/internal/handler"
	"food-compliance/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	predictionHandler *handler.PredictionHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Liveness and health endpoints (no authentication required)
	mux.HandleFunc("/", predictionHandler.Liveness)
	mux.HandleFunc("/health", predictionHandler.Health)

	mux.HandleFunc("/predict", predictionHandler.Predict)
	mux.HandleFunc("/predictions/", predictionHandler.Predictions)
	mux.HandleFunc("/stats", predictionHandler.Stats)

	// Apply middleware in order: Recovery -> Logging -> RequestID -> CORS -> APIKeyAuth
	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(apiKey, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
