package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"food-compliance/internal/feature"
	"food-compliance/internal/middleware"
	"food-compliance/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPredictionService is a mock implementation of PredictionService.
type MockPredictionService struct {
	mock.Mock
}

func (m *MockPredictionService) Predict(ctx context.Context, requestID uuid.UUID, products []model.ProductRecord) (*model.PredictResponse, error) {
	args := m.Called(ctx, requestID, products)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PredictResponse), args.Error(1)
}

func (m *MockPredictionService) ModelID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPredictionService) Predictions(ctx context.Context, requestID uuid.UUID) (*model.RequestPredictionsResponse, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RequestPredictionsResponse), args.Error(1)
}

func (m *MockPredictionService) Stats(ctx context.Context) (*model.StatsResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StatsResponse), args.Error(1)
}

func TestPredictionHandler_Liveness(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success",
			method:         http.MethodGet,
			path:           "/",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"success":"0"}`,
		},
		{
			name:           "Unknown path",
			method:         http.MethodGet,
			path:           "/unknown",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Invalid method",
			method:         http.MethodPost,
			path:           "/",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPredictionHandler(new(MockPredictionService), logger)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			h.Liveness(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestPredictionHandler_Health(t *testing.T) {
	tests := []struct {
		name           string
		modelID        string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Model loaded",
			modelID:        "7c9e6679-7425-40de-944b-e07fc1f90ae7",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"healthy","model_id":"7c9e6679-7425-40de-944b-e07fc1f90ae7"}`,
		},
		{
			name:           "No model",
			modelID:        "",
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPredictionService)
			svc.On("ModelID").Return(tt.modelID)
			h := NewPredictionHandler(svc, zerolog.Nop())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			h.Health(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestPredictionHandler_Predict(t *testing.T) {
	validBody := `{"products":[
		{"product_name":"Organic Apple Juice","brand":"Brand_1","nutritional_info":"Fat: 1g, Sugar: 2g","expiration_date":"2030-01-01","regulatory_notes":"Approved by FDA"},
		{"product_name":"Cheddar Cheese","brand":"Brand_2"}
	]}`

	tests := []struct {
		name           string
		method         string
		body           string
		mockReturn     *model.PredictResponse
		mockError      error
		expectService  bool
		expectedStatus int
		expectedCode   string
		expectedError  string
	}{
		{
			name:           "Success",
			method:         http.MethodPost,
			body:           validBody,
			mockReturn:     &model.PredictResponse{Predictions: []string{model.Compliant, model.NotCompliant}},
			expectService:  true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Empty product list",
			method:         http.MethodPost,
			body:           `{"products":[]}`,
			mockReturn:     &model.PredictResponse{Predictions: []string{}},
			expectService:  true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid method",
			method:         http.MethodGet,
			body:           validBody,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "Malformed JSON",
			method:         http.MethodPost,
			body:           `{"products":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Body is a list",
			method:         http.MethodPost,
			body:           `[{"product_name":"x"}]`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Missing products",
			method:         http.MethodPost,
			body:           `{"items":[]}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeMissingField,
			expectedError:  "No products found in the request",
		},
		{
			name:           "Products not a list",
			method:         http.MethodPost,
			body:           `{"products":{"product_name":"x"}}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidProducts,
			expectedError:  "Products should be a list",
		},
		{
			name:           "Products null",
			method:         http.MethodPost,
			body:           `{"products":null}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Products should be a list",
		},
		{
			name:           "Product not an object",
			method:         http.MethodPost,
			body:           `{"products":["Apple"]}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidProducts,
		},
		{
			name:           "Batch too large",
			method:         http.MethodPost,
			body:           validBody,
			mockError:      model.ErrBatchTooLarge,
			expectService:  true,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedCode:   model.ErrCodeBatchTooLarge,
		},
		{
			name:           "Timeout",
			method:         http.MethodPost,
			body:           validBody,
			mockError:      model.ErrPredictTimeout,
			expectService:  true,
			expectedStatus: http.StatusGatewayTimeout,
			expectedCode:   model.ErrCodeTimeout,
		},
		{
			name:           "Internal error hides detail",
			method:         http.MethodPost,
			body:           validBody,
			mockError:      errors.New("forward pass failed"),
			expectService:  true,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
			expectedError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPredictionService)
			if tt.expectService {
				svc.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(tt.mockReturn, tt.mockError)
			}
			h := NewPredictionHandler(svc, zerolog.Nop())

			req := httptest.NewRequest(tt.method, "/predict", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.Predict(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
			}

			if tt.expectedStatus == http.StatusOK {
				var resp model.PredictResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.Equal(t, tt.mockReturn.Predictions, resp.Predictions)
				return
			}

			var resp model.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, resp.Code)
			}
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, resp.Error)
			}
		})
	}
}

func TestPredictionHandler_Predict_PassesRequestID(t *testing.T) {
	requestID := uuid.New()
	svc := new(MockPredictionService)
	svc.On("Predict", mock.Anything, requestID, mock.Anything).
		Return(&model.PredictResponse{Predictions: []string{model.Compliant}}, nil)
	h := NewPredictionHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"products":[{}]}`))
	req = req.WithContext(middleware.WithRequestID(req.Context(), requestID))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestPredictionHandler_Predict_BodyTooLarge(t *testing.T) {
	svc := new(MockPredictionService)
	h := NewPredictionHandler(svc, zerolog.Nop())
	h.maxBodyBytes = 16

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"products":[{"product_name":"Apple"}]}`))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	svc.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
}

func TestDecodeProducts_Coercion(t *testing.T) {
	body := `{"products":[{
		"product_name": "Apple",
		"brand": 7,
		"nutritional_info": null,
		"expiration_date": {"day": 1},
		"regulatory_notes": true,
		"unknown": "ignored"
	}]}`

	products, err := DecodeProducts([]byte(body))
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Apple", model.Value(p.ProductName))
	require.NotNil(t, p.Brand)
	assert.Equal(t, "", *p.Brand)
	assert.Nil(t, p.NutritionalInfo)
	assert.Equal(t, "", model.Value(p.ExpirationDate))
	assert.Equal(t, "", model.Value(p.RegulatoryNotes))

	// Coerced and missing fields contribute the same feature text
	assert.Equal(t, feature.BuildText(model.ProductRecord{ProductName: p.ProductName}), feature.BuildText(p))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{model.ErrCodeInvalidJSON, http.StatusBadRequest},
		{model.ErrCodeMissingField, http.StatusBadRequest},
		{model.ErrCodeInvalidProducts, http.StatusBadRequest},
		{model.ErrCodeBatchTooLarge, http.StatusRequestEntityTooLarge},
		{model.ErrCodeUnauthorised, http.StatusUnauthorized},
		{model.ErrCodeModelUnavailable, http.StatusServiceUnavailable},
		{model.ErrCodeTimeout, http.StatusGatewayTimeout},
		{model.ErrCodeInvalidID, http.StatusBadRequest},
		{model.ErrCodeNotFound, http.StatusNotFound},
		{model.ErrCodeAuditDisabled, http.StatusNotImplemented},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.code))
		})
	}
}

func TestPredictionHandler_Predictions(t *testing.T) {
	requestID := uuid.MustParse("3f2b8c1e-9a4d-4e6f-8b7a-1c2d3e4f5a6b")
	found := &model.RequestPredictionsResponse{
		RequestID: requestID.String(),
		Predictions: []model.AuditedPrediction{
			{Position: 0, FeatureText: "apple", Label: model.Compliant, ModelID: "m1"},
		},
	}

	tests := []struct {
		name           string
		method         string
		path           string
		mockReturn     *model.RequestPredictionsResponse
		mockError      error
		expectService  bool
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Found",
			method:         http.MethodGet,
			path:           "/predictions/" + requestID.String(),
			mockReturn:     found,
			expectService:  true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Unknown request",
			method:         http.MethodGet,
			path:           "/predictions/" + requestID.String(),
			mockError:      model.ErrRequestNotFound,
			expectService:  true,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeNotFound,
		},
		{
			name:           "Audit disabled",
			method:         http.MethodGet,
			path:           "/predictions/" + requestID.String(),
			mockError:      model.ErrAuditDisabled,
			expectService:  true,
			expectedStatus: http.StatusNotImplemented,
			expectedCode:   model.ErrCodeAuditDisabled,
		},
		{
			name:           "Not a UUID",
			method:         http.MethodGet,
			path:           "/predictions/abc",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidID,
		},
		{
			name:           "Missing ID",
			method:         http.MethodGet,
			path:           "/predictions/",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidID,
		},
		{
			name:           "Trailing segment",
			method:         http.MethodGet,
			path:           "/predictions/" + requestID.String() + "/extra",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidID,
		},
		{
			name:           "Invalid method",
			method:         http.MethodDelete,
			path:           "/predictions/" + requestID.String(),
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPredictionService)
			if tt.expectService {
				if tt.mockError != nil {
					svc.On("Predictions", mock.Anything, requestID).Return(nil, tt.mockError)
				} else {
					svc.On("Predictions", mock.Anything, requestID).Return(tt.mockReturn, nil)
				}
			}
			h := NewPredictionHandler(svc, zerolog.Nop())

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			h.Predictions(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedCode, body.Code)
			}
			if tt.mockReturn != nil {
				var body model.RequestPredictionsResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, requestID.String(), body.RequestID)
				require.Len(t, body.Predictions, 1)
				assert.Equal(t, model.Compliant, body.Predictions[0].Label)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestPredictionHandler_Stats(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		mockReturn     *model.StatsResponse
		mockError      error
		expectService  bool
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success",
			method:         http.MethodGet,
			mockReturn:     &model.StatsResponse{ModelID: "m1", Counts: map[string]int{model.Compliant: 1, model.NotCompliant: 2}, Total: 3},
			expectService:  true,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"model_id":"m1","counts":{"compliant":1,"not compliant":2},"total":3}`,
		},
		{
			name:           "No model",
			method:         http.MethodGet,
			mockError:      model.ErrModelUnavailable,
			expectService:  true,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "Repository failure",
			method:         http.MethodGet,
			mockError:      errors.New("failed to count predictions: timeout"),
			expectService:  true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "Invalid method",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPredictionService)
			if tt.expectService {
				if tt.mockError != nil {
					svc.On("Stats", mock.Anything).Return(nil, tt.mockError)
				} else {
					svc.On("Stats", mock.Anything).Return(tt.mockReturn, nil)
				}
			}
			h := NewPredictionHandler(svc, zerolog.Nop())

			req := httptest.NewRequest(tt.method, "/stats", nil)
			w := httptest.NewRecorder()

			h.Stats(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}
