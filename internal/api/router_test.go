package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/config"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/testutil"
)

// newTestServer wires the full router against an in-memory database and fake
// storage/renderer backends, mirroring the production wiring in cmd/server.
func newTestServer(t *testing.T) (http.Handler, *sql.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	formService, _, _ := testutil.NewTestFormService(t, db)

	router := api.NewRouter(api.Services{
		System:     testutil.NewTestSystemService(t, db),
		TreatyRule: testutil.NewTestTreatyRuleService(t, db),
		Statement:  testutil.NewTestStatementService(t, db),
		Dividend:   testutil.NewTestDividendService(t, db),
		Reclaim:    testutil.NewTestReclaimService(t, db),
		Form:       formService,
		Profile:    testutil.NewTestProfileService(t, db),
	}, &config.Config{
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	})
	return router, db
}

// doJSON performs a JSON request as the given user and decodes the response
// body into out (when non-nil).
func doJSON(t *testing.T, router http.Handler, method, path, userID string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("Failed to decode response body %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

// TestRouter_Identity tests the user-identity middleware on protected routes.
//
// WHY: Every user-scoped endpoint trusts the X-User-ID header forwarded by
// the upstream gateway; a request without a valid identity must never reach
// a handler.
func TestRouter_Identity(t *testing.T) {
	router, _ := newTestServer(t)

	t.Run("rejects a missing identity", func(t *testing.T) {
		// Execute
		rec := doJSON(t, router, http.MethodGet, "/api/statement/", "", nil, nil)

		// Assert
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a malformed identity", func(t *testing.T) {
		// Execute
		rec := doJSON(t, router, http.MethodGet, "/api/statement/", "not-a-uuid", nil, nil)

		// Assert
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("leaves system endpoints public", func(t *testing.T) {
		// Execute
		rec := doJSON(t, router, http.MethodGet, "/api/system/health", "", nil, nil)

		// Assert
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

// TestRouter_StatementLifecycle tests the statement endpoints over HTTP.
//
// WHY: The HTTP layer adds its own failure modes on top of the service:
// error-to-status mapping, ownership hiding, and body validation all only
// exist here.
func TestRouter_StatementLifecycle(t *testing.T) {
	t.Run("creates and transitions a statement", func(t *testing.T) {
		// Setup
		router, _ := newTestServer(t)
		userID := testutil.MakeID()

		var created model.DividendStatement
		rec := doJSON(t, router, http.MethodPost, "/api/statement/", userID, map[string]any{
			"broker":        "Interactive Brokers",
			"sourceFileRef": "statements/2024.pdf",
			"periodStart":   "2024-01-01",
			"periodEnd":     "2024-12-31",
		}, &created)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if created.Status != model.StatementUploaded {
			t.Fatalf("Expected UPLOADED, got %s", created.Status)
		}

		// Execute
		var updated model.DividendStatement
		rec = doJSON(t, router, http.MethodPost, "/api/statement/"+created.ID+"/transition", userID,
			map[string]any{"status": "PARSING"}, &updated)

		// Assert
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if updated.Status != model.StatementParsing {
			t.Errorf("Expected PARSING, got %s", updated.Status)
		}
	})

	t.Run("maps an invalid transition to 409", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		userID := testutil.MakeID()
		st := testutil.NewStatement().WithOwner(userID).Build(t, db)

		// Execute: UPLOADED -> SENT skips three states
		rec := doJSON(t, router, http.MethodPost, "/api/statement/"+st.ID+"/transition", userID,
			map[string]any{"status": "SENT", "sentMethod": "POSTAL"}, nil)

		// Assert
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("maps SENT without a method to 400", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		userID := testutil.MakeID()
		st := testutil.NewStatement().WithOwner(userID).WithStatus(model.StatementValidated).Build(t, db)

		// Execute
		rec := doJSON(t, router, http.MethodPost, "/api/statement/"+st.ID+"/transition", userID,
			map[string]any{"status": "SENT"}, nil)

		// Assert
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("hides another user's statement", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		st := testutil.NewStatement().WithOwner(testutil.MakeID()).Build(t, db)

		// Execute
		rec := doJSON(t, router, http.MethodGet, "/api/statement/"+st.ID+"/", testutil.MakeID(), nil, nil)

		// Assert
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("rejects a malformed statement ID", func(t *testing.T) {
		// Setup
		router, _ := newTestServer(t)

		// Execute
		rec := doJSON(t, router, http.MethodGet, "/api/statement/not-a-uuid/", testutil.MakeID(), nil, nil)

		// Assert
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("applies parsed dividends", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		userID := testutil.MakeID()
		st := testutil.NewStatement().WithOwner(userID).WithStatus(model.StatementParsing).Build(t, db)

		// Execute
		var dividends []model.Dividend
		rec := doJSON(t, router, http.MethodPost, "/api/statement/"+st.ID+"/parsed", userID, map[string]any{
			"broker": "Interactive Brokers",
			"dividends": []map[string]any{{
				"securityName":    "Apple Inc",
				"isin":            "US0378331005",
				"paymentDate":     "2024-05-15",
				"grossAmount":     "1000",
				"currency":        "USD",
				"withholdingTax":  "300",
				"withholdingRate": "30",
			}},
		}, &dividends)

		// Assert
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(dividends) != 1 || dividends[0].SourceCountry != "US" {
			t.Errorf("Expected 1 dividend with derived source US, got %+v", dividends)
		}
	})

	t.Run("parses an uploaded CSV statement file", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		userID := testutil.MakeID()
		st := testutil.NewStatement().WithOwner(userID).WithStatus(model.StatementUploaded).Build(t, db)

		file := "securityName,isin,paymentDate,grossAmount,currency,withholdingTax,withholdingRate\n" +
			"Apple Inc,US0378331005,2024-05-15,1000,USD,300,30\n"
		req := httptest.NewRequest(http.MethodPost, "/api/statement/"+st.ID+"/parse", strings.NewReader(file))
		req.Header.Set("Content-Type", "text/csv")
		req.Header.Set("X-User-ID", userID)
		rec := httptest.NewRecorder()

		// Execute
		router.ServeHTTP(rec, req)

		// Assert
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var dividends []model.Dividend
		if err := json.Unmarshal(rec.Body.Bytes(), &dividends); err != nil {
			t.Fatalf("Failed to decode response body %q: %v", rec.Body.String(), err)
		}
		if len(dividends) != 1 || dividends[0].Isin != "US0378331005" {
			t.Errorf("Expected the parsed dividend back, got %+v", dividends)
		}
	})

	t.Run("maps an unparsable statement file to 400", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		userID := testutil.MakeID()
		st := testutil.NewStatement().WithOwner(userID).WithStatus(model.StatementUploaded).Build(t, db)

		req := httptest.NewRequest(http.MethodPost, "/api/statement/"+st.ID+"/parse", strings.NewReader("garbage"))
		req.Header.Set("Content-Type", "text/csv")
		req.Header.Set("X-User-ID", userID)
		rec := httptest.NewRecorder()

		// Execute
		router.ServeHTTP(rec, req)

		// Assert
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestRouter_FormGeneration tests the form endpoints over HTTP.
//
// WHY: Clients rely on the failure shape: a failed generation returns the
// structured result with success=false under the mapped status code, not a
// bare error envelope.
func TestRouter_FormGeneration(t *testing.T) {
	t.Run("generates a certificate and returns a download URL", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		profile := testutil.NewProfile().Build(t, db)

		// Execute
		var result map[string]any
		rec := doJSON(t, router, http.MethodPost, "/api/form/", profile.UserID, map[string]any{
			"formType": "RESIDENCY_CERT",
			"taxYear":  2024,
		}, &result)

		// Assert
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if result["success"] != true {
			t.Errorf("Expected success=true, got %v", result["success"])
		}
		if result["downloadUrl"] == "" || result["downloadUrl"] == nil {
			t.Error("Expected a download URL")
		}
	})

	t.Run("returns the failed result shape for an incomplete profile", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		profile := testutil.NewProfile().Incomplete().Build(t, db)

		// Execute
		var result map[string]any
		rec := doJSON(t, router, http.MethodPost, "/api/form/", profile.UserID, map[string]any{
			"formType": "RESIDENCY_CERT",
			"taxYear":  2024,
		}, &result)

		// Assert
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		if result["success"] != false {
			t.Errorf("Expected success=false, got %v", result["success"])
		}
		errs, ok := result["errors"].([]any)
		if !ok || len(errs) == 0 {
			t.Errorf("Expected errors in the result, got %v", result["errors"])
		}
	})

	t.Run("maps a claimed dividend to 409", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		profile := testutil.NewProfile().Build(t, db)
		testutil.NewTreatyRule().WithCountries("US", "CH").WithTreatyRate("30", "15").Build(t, db)
		previous := testutil.NewForm().WithOwner(profile.UserID).Build(t, db)
		claimed := testutil.NewDividend().WithOwner(profile.UserID).WithForm(previous.ID).Build(t, db)

		// Execute
		rec := doJSON(t, router, http.MethodPost, "/api/form/", profile.UserID, map[string]any{
			"formType":    "DIVIDEND_SCHEDULE",
			"taxYear":     2024,
			"dividendIds": []string{claimed.ID},
		}, nil)

		// Assert
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestRouter_Calculation tests the calculation endpoints over HTTP.
//
// WHY: The user-level endpoint defaults the residence country from the
// profile, which only the handler does; the service always requires one.
func TestRouter_Calculation(t *testing.T) {
	t.Run("calculates the user's unsubmitted dividends", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		profile := testutil.NewProfile().Build(t, db)
		testutil.NewTreatyRule().WithCountries("US", "CH").WithTreatyRate("30", "15").Build(t, db)
		testutil.NewDividend().WithOwner(profile.UserID).WithAmounts("1000", "300", "30").Build(t, db)

		// Execute: no residence country in the body, profile provides CH
		var batch map[string]any
		rec := doJSON(t, router, http.MethodPost, "/api/calculation/user", profile.UserID,
			map[string]any{}, &batch)

		// Assert
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if batch["successCount"] != float64(1) {
			t.Errorf("Expected 1 success, got %v", batch["successCount"])
		}
		if batch["totalReclaimable"] != "150" {
			t.Errorf("Expected total reclaimable 150, got %v", batch["totalReclaimable"])
		}
	})
}

// TestRouter_TreatyRules tests the public treaty-rule endpoints.
//
// WHY: Rule resolution is reference data shared across users and must work
// without an identity header.
func TestRouter_TreatyRules(t *testing.T) {
	t.Run("resolves a rule without identity", func(t *testing.T) {
		// Setup
		router, db := newTestServer(t)
		testutil.NewTreatyRule().WithCountries("US", "CH").WithTreatyRate("30", "15").Build(t, db)

		// Execute
		var rule model.TreatyRule
		rec := doJSON(t, router, http.MethodGet,
			"/api/treaty-rule/resolve?sourceCountry=US&residenceCountry=CH&date=2024-05-15", "", nil, &rule)

		// Assert
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rule.SourceCountry != "US" || rule.TreatyRate == nil {
			t.Errorf("Expected the US->CH rule, got %+v", rule)
		}
	})

	t.Run("maps an unknown pair to 404", func(t *testing.T) {
		// Setup
		router, _ := newTestServer(t)

		// Execute
		rec := doJSON(t, router, http.MethodGet,
			"/api/treaty-rule/resolve?sourceCountry=JP&residenceCountry=CH&date=2024-05-15", "", nil, nil)

		// Assert
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})
}
