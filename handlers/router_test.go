package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/observability"
	"github.com/idkrafsan/BetTracker/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const betID = "0b6f3c9e-1d2a-4b5c-8e7f-9a0b1c2d3e4f"

type testServer struct {
	bets      *mockBetService
	accounts  *mockAccountService
	dashboard *mockDashboardProvider
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		bets:      &mockBetService{},
		accounts:  &mockAccountService{},
		dashboard: &mockDashboardProvider{},
	}
	ts.handler = NewRouter(Dependencies{
		Bets:      ts.bets,
		Accounts:  ts.accounts,
		Dashboard: ts.dashboard,
		Health:    stubHealth{},
	})
	t.Cleanup(func() {
		ts.bets.AssertExpectations(t)
		ts.accounts.AssertExpectations(t)
		ts.dashboard.AssertExpectations(t)
	})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func sampleBet(status models.BetStatus) *models.Bet {
	return &models.Bet{
		ID:     betID,
		Match:  "Arsenal vs Spurs",
		Stake:  decimal.RequireFromString("10"),
		Odds:   decimal.RequireFromString("2.5"),
		Status: status,
		Date:   time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func inputMatching(match string, status models.BetStatus, stake string) interface{} {
	return mock.MatchedBy(func(in models.BetInput) bool {
		return in.Match == match && in.Status == status && in.Stake.Equal(decimal.RequireFromString(stake))
	})
}

func TestCreateBet(t *testing.T) {
	t.Run("settled bet", func(t *testing.T) {
		ts := newTestServer(t)
		ts.bets.On("CreateBet", mock.Anything, inputMatching("Arsenal vs Spurs", models.BetStatusWon, "10")).
			Return(sampleBet(models.BetStatusWon), nil).Once()

		rec := ts.do(http.MethodPost, "/api/v1/bets", `{"match":"Arsenal vs Spurs","stake":10,"odds":"2.5","status":"won"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["settlementApplied"])
		assert.NotContains(t, body, "pendingDelta")
		bet := body["bet"].(map[string]any)
		assert.Equal(t, betID, bet["id"])
		assert.Equal(t, "won", bet["status"])
	})

	t.Run("settlement not applied", func(t *testing.T) {
		ts := newTestServer(t)
		failure := &service.SettlementNotAppliedError{
			BetID: betID,
			Delta: decimal.RequireFromString("15"),
			Err:   fmt.Errorf("apply settlement: %w", service.ErrStoreUnavailable),
		}
		ts.bets.On("CreateBet", mock.Anything, mock.Anything).Return(sampleBet(models.BetStatusWon), failure).Once()

		rec := ts.do(http.MethodPost, "/api/v1/bets", `{"match":"Arsenal vs Spurs","stake":10,"odds":2.5,"status":"won"}`)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["settlementApplied"])
		assert.Equal(t, "15", body["pendingDelta"])
		assert.NotEmpty(t, body["error"])
		assert.Equal(t, betID, body["bet"].(map[string]any)["id"])
	})

	t.Run("validation failure lists fields", func(t *testing.T) {
		ts := newTestServer(t)
		ts.bets.On("CreateBet", mock.Anything, mock.Anything).Return(nil, service.ValidationErrors{
			{Field: "stake", Rule: "dgt=0"},
			{Field: "odds", Rule: "dgt=1"},
		}).Once()

		rec := ts.do(http.MethodPost, "/api/v1/bets", `{"match":"x","stake":0,"odds":1,"status":"pending"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []FieldError{{Field: "stake", Rule: "dgt=0"}, {Field: "odds", Rule: "dgt=1"}}, resp.Fields)
	})

	t.Run("malformed bodies never reach the service", func(t *testing.T) {
		bodies := []string{
			`not json`,
			`{"match":"x","stake":10,"odds":2,"status":"void"}`,
			`{"match":"x","stake":10,"odds":2,"status":"won","extra":true}`,
		}
		for _, body := range bodies {
			ts := newTestServer(t)
			rec := ts.do(http.MethodPost, "/api/v1/bets", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.bets.On("CreateBet", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("create bet: %w", service.ErrStoreUnavailable)).Once()

		rec := ts.do(http.MethodPost, "/api/v1/bets", `{"match":"x","stake":10,"odds":2,"status":"pending"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestEditBet(t *testing.T) {
	t.Run("edited", func(t *testing.T) {
		ts := newTestServer(t)
		ts.bets.On("EditBet", mock.Anything, betID, inputMatching("Arsenal vs Spurs", models.BetStatusLost, "10")).
			Return(sampleBet(models.BetStatusLost), nil).Once()

		rec := ts.do(http.MethodPut, "/api/v1/bets/"+betID, `{"match":"Arsenal vs Spurs","stake":"10","odds":"2.5","status":"lost"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["settlementApplied"])
	})

	t.Run("not found", func(t *testing.T) {
		ts := newTestServer(t)
		ts.bets.On("EditBet", mock.Anything, "missing", mock.Anything).
			Return(nil, fmt.Errorf("bet missing: %w", service.ErrNotFound)).Once()

		rec := ts.do(http.MethodPut, "/api/v1/bets/missing", `{"match":"x","stake":10,"odds":2,"status":"won"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteBets(t *testing.T) {
	ts := newTestServer(t)
	ts.bets.On("DeleteBet", mock.Anything, betID).Return(nil).Once()
	ts.bets.On("DeleteBet", mock.Anything, "gone").Return(fmt.Errorf("bet gone: %w", service.ErrNotFound)).Once()
	ts.bets.On("SoftDeleteBet", mock.Anything, betID).Return(sampleBet(models.BetStatusDeleted), nil).Once()

	rec := ts.do(http.MethodDelete, "/api/v1/bets/"+betID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/bets/gone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/bets/"+betID+"/delete", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deleted", decodeBody(t, rec)["status"])
}

func TestListAndGetBets(t *testing.T) {
	ts := newTestServer(t)
	ts.bets.On("ListBets", mock.Anything).Return(nil, nil).Once()
	ts.bets.On("GetBet", mock.Anything, betID).Return(sampleBet(models.BetStatusPending), nil).Once()

	rec := ts.do(http.MethodGet, "/api/v1/bets", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/bets/"+betID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Arsenal vs Spurs", decodeBody(t, rec)["match"])
}

func TestAccountEndpoints(t *testing.T) {
	account := models.NewEmptyAccount(models.DefaultAccountID)
	account.Balance = decimal.RequireFromString("25.5")

	t.Run("deposit", func(t *testing.T) {
		ts := newTestServer(t)
		ts.accounts.On("Deposit", mock.Anything, mock.MatchedBy(func(in models.AmountInput) bool {
			return in.Amount.Equal(decimal.RequireFromString("25.5"))
		})).Return(account, nil).Once()

		rec := ts.do(http.MethodPost, "/api/v1/account/deposit", `{"amount":"25.5"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "25.5", decodeBody(t, rec)["balance"])
	})

	t.Run("withdraw more than the balance", func(t *testing.T) {
		ts := newTestServer(t)
		ts.accounts.On("Withdraw", mock.Anything, mock.Anything).Return(nil, service.ErrInsufficientBalance).Once()

		rec := ts.do(http.MethodPost, "/api/v1/account/withdraw", `{"amount":100}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("username", func(t *testing.T) {
		ts := newTestServer(t)
		ts.accounts.On("SetUsername", mock.Anything, "punter").Return(account, nil).Once()

		rec := ts.do(http.MethodPut, "/api/v1/account/username", `{"username":"punter"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		ts := newTestServer(t)
		ts.accounts.On("GetAccount", mock.Anything).Return(account, nil).Once()

		rec := ts.do(http.MethodGet, "/api/v1/account", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.DefaultAccountID, decodeBody(t, rec)["id"])
	})

	t.Run("history limit", func(t *testing.T) {
		ts := newTestServer(t)
		ts.accounts.On("BalanceHistory", mock.Anything, 20).Return(nil, nil).Once()
		ts.accounts.On("BalanceHistory", mock.Anything, 0).Return(nil, nil).Once()

		rec := ts.do(http.MethodGet, "/api/v1/account/history?limit=20", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = ts.do(http.MethodGet, "/api/v1/account/history?limit=abc", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGetDashboard(t *testing.T) {
	t.Run("period passed through", func(t *testing.T) {
		ts := newTestServer(t)
		ts.dashboard.On("Current", mock.Anything, models.PeriodWeek).
			Return(&models.Dashboard{Period: models.PeriodWeek}, nil).Once()

		rec := ts.do(http.MethodGet, "/api/v1/dashboard?period=1w", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1w", decodeBody(t, rec)["period"])
	})

	t.Run("defaults to all", func(t *testing.T) {
		ts := newTestServer(t)
		ts.dashboard.On("Current", mock.Anything, models.PeriodAll).
			Return(&models.Dashboard{Period: models.PeriodAll}, nil).Once()

		rec := ts.do(http.MethodGet, "/api/v1/dashboard", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown period", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(http.MethodGet, "/api/v1/dashboard?period=2y", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unexpected error", func(t *testing.T) {
		ts := newTestServer(t)
		ts.dashboard.On("Current", mock.Anything, models.PeriodAll).Return(nil, errors.New("boom")).Once()

		rec := ts.do(http.MethodGet, "/api/v1/dashboard?period=all", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	handler := NewRouter(Dependencies{
		Bets:      &mockBetService{},
		Accounts:  &mockAccountService{},
		Dashboard: &mockDashboardProvider{},
		Health:    stubHealth{err: errors.New("connection refused")},
		Metrics:   metrics,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bettracker_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), `route="/health"`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bets", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
