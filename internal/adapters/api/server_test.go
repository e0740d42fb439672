package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inputbid-service/internal/adapters/api"
	"inputbid-service/internal/adapters/db"
	"inputbid-service/internal/adapters/db/dbtest"
	"inputbid-service/internal/app"
	"inputbid-service/internal/config"
	"inputbid-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler  http.Handler
	access   *db.AccessRepository
	business shared.Party
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	store := db.NewStore(conn)
	logger := zerolog.Nop()

	requests := app.NewRequestService(app.RequestServiceParams{Store: store, Access: store.Access(), Logger: logger})
	offers := app.NewOfferService(app.OfferServiceParams{Store: store, Access: store.Access(), Logger: logger})
	acceptance := app.NewAcceptanceCoordinator(app.AcceptanceCoordinatorParams{Store: store, Logger: logger})

	server := api.NewServer(api.ServerParams{
		Config:     &config.Config{Server: config.ServerConfig{RequestTimeout: 5 * time.Second}},
		Requests:   requests,
		Offers:     offers,
		Acceptance: acceptance,
		Logger:     logger,
	})

	return &fixture{handler: server.Handler(), access: store.Access(), business: shared.Business(uuid.New())}
}

func (f *fixture) do(t *testing.T, party *shared.Party, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if party != nil {
		req.Header.Set(api.HeaderPartyKind, string(party.Kind))
		req.Header.Set(api.HeaderPartyID, party.ID.String())
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) retailer(t *testing.T) shared.Party {
	t.Helper()
	party := shared.Retailer(uuid.New())
	require.NoError(t, f.access.Grant(context.Background(), party.ID, f.business.ID, shared.CapabilityInputs, time.Now()))
	return party
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func requestBody() map[string]any {
	return map[string]any{
		"title": "Spring burndown",
		"items": []map[string]any{
			{"category": "CHEMICAL", "product_name": "Glyphosate", "quantity": "10", "unit": "GAL", "reference_price": "2.00"},
		},
	}
}

func bidBody(total string) map[string]any {
	return map[string]any{
		"total_delivered_price":    total,
		"guaranteed_delivery_date": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestMissingPartyIsRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, nil, http.MethodGet, "/api/v1/requests", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["reason_kind"])
}

func TestBidLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	retailerX := f.retailer(t)
	retailerY := f.retailer(t)

	rec := f.do(t, &f.business, http.MethodPost, "/api/v1/requests", requestBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	requestID := decodeBody(t, rec)["request_id"].(string)

	rec = f.do(t, &retailerX, http.MethodPost, "/api/v1/requests/"+requestID+"/bids", bidBody("19.00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bidX := decodeBody(t, rec)["bid_id"].(string)

	rec = f.do(t, &retailerY, http.MethodPost, "/api/v1/requests/"+requestID+"/bids", bidBody("18.00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bidY := decodeBody(t, rec)["bid_id"].(string)

	rec = f.do(t, &f.business, http.MethodGet, "/api/v1/requests/"+requestID+"/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody(t, rec)
	assert.Equal(t, bidY, summary["best_offer"].(map[string]any)["id"])

	rec = f.do(t, &retailerX, http.MethodGet, "/api/v1/requests/"+requestID+"/bids", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["bids"], 1)

	rec = f.do(t, &retailerX, http.MethodPost, "/api/v1/bids/"+bidX+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, &f.business, http.MethodPost, "/api/v1/bids/"+bidX+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ACCEPTED", decodeBody(t, rec)["status"])

	rec = f.do(t, &f.business, http.MethodPost, "/api/v1/bids/"+bidY+"/accept", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody(t, rec)["reason_kind"])

	rec = f.do(t, &retailerY, http.MethodPost, "/api/v1/requests/"+requestID+"/bids", bidBody("17.00"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, rec)["reason_kind"])

	rec = f.do(t, &retailerY, http.MethodGet, "/api/v1/bids/"+bidY, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REJECTED", decodeBody(t, rec)["status"])
}

func TestRequestManagementOverHTTP(t *testing.T) {
	f := newFixture(t)
	retailer := f.retailer(t)
	stranger := shared.Retailer(uuid.New())

	rec := f.do(t, &retailer, http.MethodPost, "/api/v1/requests", requestBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, &f.business, http.MethodPost, "/api/v1/requests", map[string]any{"title": "empty"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &f.business, http.MethodPost, "/api/v1/requests", requestBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	requestID := decodeBody(t, rec)["request_id"].(string)

	rec = f.do(t, &stranger, http.MethodGet, "/api/v1/requests/"+requestID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, &retailer, http.MethodGet, "/api/v1/requests?status=OPEN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["requests"], 1)

	rec = f.do(t, &f.business, http.MethodGet, "/api/v1/requests?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, &f.business, http.MethodPatch, "/api/v1/requests/"+requestID+"/notes", map[string]any{"notes": "gate code 1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gate code 1234", decodeBody(t, rec)["notes"])

	rec = f.do(t, &f.business, http.MethodPost, "/api/v1/requests/"+requestID+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, &f.business, http.MethodPost, "/api/v1/requests/"+requestID+"/close", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, &f.business, http.MethodDelete, "/api/v1/requests/"+requestID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, &f.business, http.MethodGet, "/api/v1/requests/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, &f.business, http.MethodGet, "/api/v1/requests/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawAndDeleteOverHTTP(t *testing.T) {
	f := newFixture(t)
	retailer := f.retailer(t)

	rec := f.do(t, &f.business, http.MethodPost, "/api/v1/requests", requestBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	requestID := decodeBody(t, rec)["request_id"].(string)

	rec = f.do(t, &retailer, http.MethodPost, "/api/v1/requests/"+requestID+"/bids", bidBody("20.00"))
	require.Equal(t, http.StatusCreated, rec.Code)
	bidID := decodeBody(t, rec)["bid_id"].(string)

	rec = f.do(t, &retailer, http.MethodDelete, "/api/v1/bids/"+bidID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, &retailer, http.MethodGet, "/api/v1/bids/"+bidID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, &f.business, http.MethodDelete, "/api/v1/requests/"+requestID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, &f.business, http.MethodGet, "/api/v1/requests/"+requestID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
