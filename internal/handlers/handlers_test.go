package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/01moynul/taptosell-installments/internal/auth"
	"github.com/01moynul/taptosell-installments/internal/events"
	"github.com/01moynul/taptosell-installments/internal/handlers"
	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/policy"
	"github.com/01moynul/taptosell-installments/internal/routes"
	"github.com/01moynul/taptosell-installments/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	tokens *auth.Tokens
	policy *policy.Static
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	tokens, err := auth.NewTokens("handler-test-secret")
	require.NoError(t, err)

	pol := policy.NewStatic(policy.Default())
	engine := installment.NewEngine(store.NewMemoryStore(), pol, installment.WithPublisher(&events.Recorder{}))
	h := &handlers.Handlers{Engine: engine}

	return &testServer{
		t:      t,
		router: routes.SetupRouter(h, routes.Options{Tokens: tokens, TrustedOrigin: "http://localhost:5173"}),
		tokens: tokens,
		policy: pol,
	}
}

func (s *testServer) token(actor string, role auth.Role) string {
	tok, err := s.tokens.GenerateToken(actor, role, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func field(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func (s *testServer) createRequest(buyer string) map[string]any {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/v1/buyer/installments", s.token(buyer, auth.RoleBuyer), gin.H{
		"items":          []gin.H{{"productId": "prod-1", "quantity": 3, "unitPrice": "1000"}},
		"durationMonths": 3,
	})
	require.Equal(s.t, http.StatusCreated, code, body)
	return body["request"].(map[string]any)
}

func TestPing(t *testing.T) {
	s := newServer(t)
	code, body := s.do(http.MethodGet, "/v1/ping", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong!", body["message"])
}

func TestFullNegotiationOverHTTP(t *testing.T) {
	s := newServer(t)
	buyer := s.token("buyer-1", auth.RoleBuyer)
	seller := s.token("seller-1", auth.RoleSeller)
	supplier := s.token("supplier-1", auth.RoleSupplier)
	manager := s.token("manager-1", auth.RoleManager)

	// 1. Buyer creates a request.
	req := s.createRequest("buyer-1")
	reqID := req["id"].(string)
	itemID := req["lineItems"].([]any)[0].(map[string]any)["id"].(string)
	assert.Equal(t, "PENDING_SINICAR_REVIEW", req["status"])

	// 2. Seller sees it and approves part of it.
	code, body := s.do(http.MethodGet, "/v1/seller/installments?status=PENDING_SINICAR_REVIEW", seller, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["requests"], 1)

	code, body = s.do(http.MethodPost, "/v1/seller/installments/"+reqID+"/decision", seller, gin.H{
		"decision": "approve_partial",
		"items":    []gin.H{{"requestItemId": itemID, "quantityApproved": 2, "unitPriceApproved": "1000"}},
	})
	require.Equal(t, http.StatusOK, code, body)
	primaryOfferID := field(body, "offer", "id").(string)

	// 3. Buyer rejects; the request is forwarded.
	code, body = s.do(http.MethodPost, "/v1/buyer/offers/"+primaryOfferID+"/decision", buyer, gin.H{"decision": "reject"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "FORWARDED_TO_SUPPLIERS", field(body, "request", "status"))

	// 4. Supplier bids.
	code, body = s.do(http.MethodGet, "/v1/supplier/installments", supplier, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["requests"], 1)

	code, body = s.do(http.MethodPost, "/v1/supplier/installments/"+reqID+"/offers", supplier, gin.H{
		"type":  "full",
		"items": []gin.H{{"requestItemId": itemID, "quantityApproved": 2, "unitPriceApproved": "1000"}},
	})
	require.Equal(t, http.StatusCreated, code, body)
	offerID := field(body, "offer", "id").(string)
	installments := field(body, "offer", "schedule", "installments").([]any)
	require.Len(t, installments, 3)
	assert.Equal(t, "667", installments[0].(map[string]any)["amount"])
	assert.Equal(t, "666", installments[2].(map[string]any)["amount"])

	// 5. Supplier only sees its own offer on the detail view.
	code, body = s.do(http.MethodGet, "/v1/installments/"+reqID, supplier, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["offers"], 1)

	// 6. Buyer accepts.
	code, body = s.do(http.MethodPost, "/v1/buyer/offers/"+offerID+"/decision", buyer, gin.H{"decision": "accept"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "ACTIVE_CONTRACT", field(body, "request", "status"))

	// 7. Payment and reporting.
	instID := installments[0].(map[string]any)["id"].(string)
	code, body = s.do(http.MethodPost, "/v1/manager/offers/"+offerID+"/installments/"+instID+"/pay", manager, gin.H{"paymentMethod": "bank_transfer"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(http.MethodGet, "/v1/manager/credit-profiles/buyer-1", manager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "667", field(body, "profile", "totalPaidAmount"))
	assert.Equal(t, "1333", field(body, "profile", "totalRemainingAmount"))

	code, body = s.do(http.MethodGet, "/v1/buyer/credit-profile", buyer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "high", field(body, "profile", "scoreLevel"))

	code, body = s.do(http.MethodGet, "/v1/manager/installments/stats", manager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, field(body, "stats", "totalRequests"))
	assert.EqualValues(t, 1, field(body, "stats", "acceptedOffers"))

	code, body = s.do(http.MethodGet, "/v1/manager/installments/"+reqID+"/events", manager, nil)
	require.Equal(t, http.StatusOK, code)
	evts := body["events"].([]any)
	require.NotEmpty(t, evts)
	assert.Equal(t, "request.created", evts[0].(map[string]any)["type"])

	code, _ = s.do(http.MethodGet, "/v1/manager/installments/missing/events", manager, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.do(http.MethodPost, "/v1/manager/sweeps", manager, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, field(body, "report", "contractsScanned"))

	// 8. Active contracts cannot be cancelled.
	code, body = s.do(http.MethodPost, "/v1/buyer/installments/"+reqID+"/cancel", buyer, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cannot_cancel_active_contract", body["code"])
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	buyer := s.token("buyer-1", auth.RoleBuyer)
	seller := s.token("seller-1", auth.RoleSeller)
	supplier := s.token("supplier-1", auth.RoleSupplier)

	req := s.createRequest("buyer-1")
	reqID := req["id"].(string)
	itemID := req["lineItems"].([]any)[0].(map[string]any)["id"].(string)

	t.Run("supplier before forwarding is a conflict", func(t *testing.T) {
		code, body := s.do(http.MethodPost, "/v1/supplier/installments/"+reqID+"/offers", supplier, gin.H{
			"type":  "full",
			"items": []gin.H{{"requestItemId": itemID, "quantityApproved": 1, "unitPriceApproved": "1000"}},
		})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "request_not_open_for_suppliers", body["code"])
	})

	t.Run("engine validation is a bad request", func(t *testing.T) {
		code, body := s.do(http.MethodPost, "/v1/buyer/installments", buyer, gin.H{
			"items":          []gin.H{{"productId": "p", "quantity": 1, "unitPrice": "1000"}},
			"durationMonths": 48,
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "validation_error", body["code"])
	})

	t.Run("binding failure is a bad request", func(t *testing.T) {
		code, _ := s.do(http.MethodPost, "/v1/buyer/installments", buyer, gin.H{"durationMonths": 3})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		code, body := s.do(http.MethodPost, "/v1/seller/installments/nope/decision", seller, gin.H{"decision": "reject"})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "request_not_found", body["code"])
	})

	t.Run("disabled partial approval is unprocessable", func(t *testing.T) {
		p := policy.Default()
		p.AllowPartialPrimarySeller = false
		s.policy.Replace(p)
		defer s.policy.Replace(policy.Default())

		code, body := s.do(http.MethodPost, "/v1/seller/installments/"+reqID+"/decision", seller, gin.H{
			"decision": "approve_partial",
			"items":    []gin.H{{"requestItemId": itemID, "quantityApproved": 1, "unitPriceApproved": "1000"}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, "policy_violation", body["code"])
	})

	t.Run("closing needs a reason", func(t *testing.T) {
		code, _ := s.do(http.MethodPost, "/v1/seller/installments/"+reqID+"/close", seller, gin.H{})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestOwnershipAndRoles(t *testing.T) {
	s := newServer(t)
	req := s.createRequest("buyer-1")
	reqID := req["id"].(string)
	intruder := s.token("buyer-2", auth.RoleBuyer)

	code, _ := s.do(http.MethodGet, "/v1/installments/"+reqID, intruder, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/v1/buyer/installments/"+reqID+"/cancel", intruder, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/v1/installments/"+reqID, s.token("supplier-1", auth.RoleSupplier), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/v1/seller/installments", intruder, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/v1/buyer/installments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(http.MethodGet, "/v1/buyer/installments", intruder, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["requests"])

	// The owner can cancel.
	code, body = s.do(http.MethodPost, "/v1/buyer/installments/"+reqID+"/cancel", s.token("buyer-1", auth.RoleBuyer), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CANCELLED", field(body, "request", "status"))
}

func TestForwardWithNamedSuppliers(t *testing.T) {
	s := newServer(t)
	seller := s.token("seller-1", auth.RoleSeller)
	req := s.createRequest("buyer-1")
	reqID := req["id"].(string)

	code, _ := s.do(http.MethodPost, "/v1/seller/installments/"+reqID+"/decision", seller, gin.H{"decision": "reject"})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(http.MethodPost, "/v1/seller/installments/"+reqID+"/forward", seller, gin.H{"supplierIds": []string{"supplier-2"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "FORWARDED_TO_SUPPLIERS", field(body, "request", "status"))

	code, body = s.do(http.MethodGet, "/v1/supplier/installments", s.token("supplier-1", auth.RoleSupplier), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["requests"])

	code, body = s.do(http.MethodGet, "/v1/supplier/installments", s.token("supplier-2", auth.RoleSupplier), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["requests"], 1)
}
