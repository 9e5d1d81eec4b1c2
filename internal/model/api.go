package model

import "time"

// PredictRequest represents the request payload for the prediction endpoint.
// Products is decoded lazily so that the handler can report shape errors.
type PredictRequest struct {
	Products []ProductRecord `json:"products"`
}

// PredictResponse represents the response payload for the prediction endpoint.
type PredictResponse struct {
	Predictions []string `json:"predictions"`
}

// LivenessResponse is returned by the root endpoint.
type LivenessResponse struct {
	Success string `json:"success"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	ModelID string `json:"model_id,omitempty"`
}

// AuditedPrediction is one stored prediction of a request.
type AuditedPrediction struct {
	Position    int       `json:"position"`
	FeatureText string    `json:"text"`
	Label       string    `json:"prediction"`
	ModelID     string    `json:"model_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// RequestPredictionsResponse is returned by the prediction lookup endpoint.
type RequestPredictionsResponse struct {
	RequestID   string              `json:"request_id"`
	Predictions []AuditedPrediction `json:"predictions"`
}

// StatsResponse reports how often the serving model predicted each label.
type StatsResponse struct {
	ModelID string         `json:"model_id"`
	Counts  map[string]int `json:"counts"`
	Total   int            `json:"total"`
}
