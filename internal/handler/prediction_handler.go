package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"food-compliance/internal/middleware"
	"food-compliance/internal/model"
	"food-compliance/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxBodyBytes caps the size of a prediction request body.
const DefaultMaxBodyBytes int64 = 10 << 20

// PredictionHandler handles compliance prediction HTTP requests.
type PredictionHandler struct {
	service      service.PredictionService
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(service service.PredictionService, logger zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{
		service:      service,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger.With().Str("handler", "prediction").Logger(),
	}
}

// Liveness handles GET / requests.
func (h *PredictionHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "not found", h.logger)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.LivenessResponse{Success: "0"})
}

// Health handles GET /health requests.
func (h *PredictionHandler) Health(w http.ResponseWriter, r *http.Request) {
	modelID := h.service.ModelID()
	if modelID == "" {
		writeJSON(w, http.StatusServiceUnavailable, model.HealthResponse{Status: "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, model.HealthResponse{Status: "healthy", ModelID: modelID})
}

// Predict handles POST /predict requests.
func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", h.logger)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeDomainError(w, r, model.ErrBodyTooLarge, h.logger)
			return
		}
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "failed to read request body", h.logger)
		return
	}

	products, err := DecodeProducts(body)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	resp, err := h.service.Predict(r.Context(), middleware.GetRequestID(r.Context()), products)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Predictions handles GET /predictions/{request_id} requests.
func (h *PredictionHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", h.logger)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/predictions/")
	requestID, err := uuid.Parse(idStr)
	if err != nil || strings.Contains(idStr, "/") {
		writeDomainError(w, r, model.ErrInvalidRequestID, h.logger)
		return
	}

	resp, err := h.service.Predictions(r.Context(), requestID)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /stats requests.
func (h *PredictionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", h.logger)
		return
	}

	resp, err := h.service.Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// DecodeProducts parses a prediction request body. The body must be a JSON
// object whose "products" member is a list of objects. Product fields that
// are not strings are read as empty text.
func DecodeProducts(body []byte) ([]model.ProductRecord, error) {
	var req map[string]json.RawMessage
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, model.ErrInvalidJSON
	}

	raw, ok := req["products"]
	if !ok {
		return nil, model.ErrNoProducts
	}

	if !isJSON(raw, '[') {
		return nil, model.ErrProductsNotList
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, model.ErrProductsNotList
	}

	products := make([]model.ProductRecord, len(items))
	for i, item := range items {
		if !isJSON(item, '{') {
			return nil, model.ErrProductNotObject
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, model.ErrProductNotObject
		}

		products[i] = model.ProductRecord{
			ProductName:     stringField(fields, "product_name"),
			Brand:           stringField(fields, "brand"),
			NutritionalInfo: stringField(fields, "nutritional_info"),
			ExpirationDate:  stringField(fields, "expiration_date"),
			RegulatoryNotes: stringField(fields, "regulatory_notes"),
		}
	}

	return products, nil
}

// isJSON reports whether raw is a JSON value starting with delim.
func isJSON(raw json.RawMessage, delim byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == delim
}

// stringField returns the string value of key, nil when the key is absent or
// null, and an empty string for any other JSON type.
func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}

	if string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}

	empty := ""
	return &empty
}
