package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/service"
	"pharmaledger/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{Logger: log, RetryBase: time.Millisecond})
	auth := NewAuthManager("test-secret-key-with-enough-length", time.Hour, repo)

	return New(svc, auth, "*", log)
}

// doJSON sends an authenticated request with a fresh CSRF token and decodes the body.
func doJSON(t *testing.T, api *API, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return rec.Code, out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	code, body := doJSON(t, api, http.MethodGet, "/healthz", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "admin123"})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %v)", code, body)
	}
	if body["accessToken"] == nil || body["accessToken"] == "" {
		t.Fatalf("expected accessToken in response, got %v", body)
	}
	if body["role"] != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %v", body["role"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestHandleMedicines_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	code, _ := doJSON(t, api, http.MethodGet, "/api/v1/medicines", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestHandleMedicines_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	code, body := doJSON(t, api, http.MethodGet, "/api/v1/medicines", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	medicines, ok := body["medicines"].([]any)
	if !ok || len(medicines) != 2 {
		t.Fatalf("expected 2 seeded medicines, got %v", body["medicines"])
	}
}

func TestHandleCreateSale(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"customer": "party-apollo",
		"items": []map[string]any{
			{"medicine": "med-paracetamol", "batch": "batch-pcm-a", "quantity": 10},
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %v)", code, body)
	}
	sale, ok := body["sale"].(map[string]any)
	if !ok {
		t.Fatalf("expected sale object, got %v", body)
	}
	if got := fmt.Sprint(sale["grandTotal"]); got != "336" {
		t.Fatalf("expected grand total 336, got %s", got)
	}
	if sale["paymentStatus"] != domain.PaymentStatusUnpaid {
		t.Fatalf("expected unpaid status, got %v", sale["paymentStatus"])
	}

	code, body = doJSON(t, api, http.MethodGet, "/api/v1/sales/"+fmt.Sprint(sale["id"]), token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200 reading the sale back, got %d (body: %v)", code, body)
	}
}

func TestServiceErrorsMapToStatusCodes(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"customer": "party-apollo",
		"items":    []map[string]any{{"medicine": "med-paracetamol", "quantity": 1000}},
	})
	if code != http.StatusConflict || body["code"] != "insufficient_stock" {
		t.Fatalf("expected 409 insufficient_stock, got %d %v", code, body)
	}
	if got := fmt.Sprint(body["available"]); got != "500" {
		t.Fatalf("expected 500 available, got %s", got)
	}

	code, body = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"customer": "party-apollo",
		"items":    []map[string]any{{"medicine": "med-paracetamol", "quantity": 0}},
	})
	if code != http.StatusBadRequest || body["code"] != "validation" {
		t.Fatalf("expected 400 validation, got %d %v", code, body)
	}
	if fields, ok := body["fields"].(map[string]any); !ok || len(fields) == 0 {
		t.Fatalf("expected field errors, got %v", body["fields"])
	}

	code, body = doJSON(t, api, http.MethodGet, "/api/v1/sales/sale-missing", token, nil)
	if code != http.StatusNotFound || body["code"] != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %v", code, body)
	}

	code, body = doJSON(t, api, http.MethodPost, "/api/v1/batches", token, map[string]any{
		"medicine":      "med-paracetamol",
		"batchNumber":   "PCM2401",
		"expiryDate":    time.Now().AddDate(1, 0, 0).UTC().Format(time.RFC3339),
		"purchasePrice": "20",
		"sellingPrice":  "30",
		"mrp":           "35",
		"quantity":      10,
	})
	if code != http.StatusConflict || body["code"] != "conflict" {
		t.Fatalf("expected 409 conflict for a duplicate batch, got %d %v", code, body)
	}
}

func TestStaffCannotAdjustBatch(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	admin := loginAs(t, api, "admin", "admin123")

	adjust := map[string]any{"mode": "subtract", "quantity": 5, "reason": "breakage"}
	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/batches/batch-pcm-a/adjust", staff, adjust)
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", code)
	}

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/batches/batch-pcm-a/adjust", admin, adjust)
	if code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (body: %v)", code, body)
	}
	batch, _ := body["batch"].(map[string]any)
	if got := fmt.Sprint(batch["quantity"]); got != "195" {
		t.Fatalf("expected 195 after adjustment, got %s", got)
	}
}

func TestDeductBatchReportsAvailable(t *testing.T) {
	api := newTestAPI(t)
	staff := loginAs(t, api, "staff", "staff123")
	token := loginAs(t, api, "admin", "admin123")

	code, _ := doJSON(t, api, http.MethodPost, "/api/v1/batches/batch-amx-a/deduct", staff, map[string]any{"quantity": 5, "reason": "damaged"})
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", code)
	}

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/batches/batch-amx-a/deduct", token, map[string]any{"quantity": 500, "reason": "damaged"})
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %v)", code, body)
	}
	if got := fmt.Sprint(body["available"]); got != "120" {
		t.Fatalf("expected 120 available, got %s", got)
	}
}

func TestUsersEndpointsAreAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAs(t, api, "admin", "admin123")
	staff := loginAs(t, api, "staff", "staff123")

	code, _ := doJSON(t, api, http.MethodGet, "/api/v1/users", staff, nil)
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", code)
	}

	code, body := doJSON(t, api, http.MethodPost, "/api/v1/users", admin, domain.UserCreateRequest{Username: "pharmacist", Password: "secret12"})
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %v)", code, body)
	}

	code, body = doJSON(t, api, http.MethodGet, "/api/v1/users", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if users, ok := body["users"].([]any); !ok || len(users) != 3 {
		t.Fatalf("expected 3 users, got %v", body["users"])
	}
}

func TestExpiryReportEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "staff", "staff123")

	code, body := doJSON(t, api, http.MethodGet, "/api/v1/batches/expiring?days=90", token, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %v)", code, body)
	}
	if _, ok := body["report"].(map[string]any); !ok {
		t.Fatalf("expected report object, got %v", body)
	}
}
