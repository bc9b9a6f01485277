package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/app/server"
	"hrsched/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func journeyConfig(t *testing.T) config.Config {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return config.Config{
		DatabaseURL:              dbURL,
		JWTSecret:                "test-secret",
		FrontendDir:              t.TempDir(),
		Environment:              "test",
		SeedAdminEmail:           "admin@test.local",
		SeedAdminPassword:        "ChangeMe123!",
		EmailFrom:                "no-reply@test.local",
		RunMigrations:            true,
		RunSeed:                  true,
		MaxBodyBytes:             1048576,
		RateLimitPerMinute:       1000,
		SummaryCacheTTL:          time.Minute,
		RequestMinNoticeDays:     2,
		DailyApprovalLimit:       3,
		MorningShiftMinDeparture: "11:00",
		TokenTTL:                 time.Hour,
	}
}

func TestRequestDecisionJourney(t *testing.T) {
	cfg := journeyConfig(t)
	app, err := server.New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	c := &client{t: t, http: ts.Client(), base: ts.URL + "/api/v1"}

	admin := c.login(cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	suffix := time.Now().UnixNano()

	var factory struct{ ID string }
	c.do(admin, http.MethodPost, "/factories", map[string]any{"name": "Journey Plant", "code": fmt.Sprintf("J%d", suffix%1_000_000)}, http.StatusCreated, &factory)

	leaderEmail := fmt.Sprintf("leader-%d@example.com", suffix)
	var leader struct{ ID string }
	c.do(admin, http.MethodPost, "/employees", map[string]any{
		"name": "Lena Leader", "email": leaderEmail, "role": "leader", "factoryId": factory.ID, "password": "Leader123!",
	}, http.StatusCreated, &leader)

	var group struct{ ID string }
	c.do(admin, http.MethodPost, "/groups", map[string]any{
		"factoryId": factory.ID, "name": "Night crew", "shift": "night", "primaryLeaderId": leader.ID,
	}, http.StatusCreated, &group)

	employeeEmail := fmt.Sprintf("employee-%d@example.com", suffix)
	var employee struct{ ID string }
	c.do(admin, http.MethodPost, "/employees", map[string]any{
		"name": "Ana Diaz", "email": employeeEmail, "factoryId": factory.ID, "groupId": group.ID, "password": "Employee123!",
	}, http.StatusCreated, &employee)

	worker := c.login(employeeEmail, "Employee123!")
	today := time.Now().UTC().Format(time.DateOnly)

	var created struct {
		ID     string
		Status string
	}
	c.do(worker, http.MethodPost, "/requests", map[string]any{
		"type": "lateness", "startDate": today, "time": "08:40", "reason": "Bus breakdown",
	}, http.StatusCreated, &created)
	assert.Equal(t, "pending", created.Status)

	c.do(worker, http.MethodPost, "/requests/"+created.ID+"/approve", nil, http.StatusForbidden, nil)

	lead := c.login(leaderEmail, "Leader123!")
	var decided struct {
		Status       string
		DecisionNote string
	}
	c.do(lead, http.MethodPost, "/requests/"+created.ID+"/approve", map[string]any{"note": "Noted"}, http.StatusOK, &decided)
	assert.Equal(t, "approved", decided.Status)
	assert.Equal(t, "Noted", decided.DecisionNote)

	c.do(lead, http.MethodPost, "/requests/"+created.ID+"/reject", nil, http.StatusConflict, nil)

	var inbox []struct{ Type string }
	c.do(worker, http.MethodGet, "/notifications", nil, http.StatusOK, &inbox)
	require.NotEmpty(t, inbox)
	assert.Equal(t, "request_approved", inbox[0].Type)

	var mine []struct{ ID string }
	c.do(worker, http.MethodGet, "/requests?status=approved", nil, http.StatusOK, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	c.do(worker, http.MethodGet, "/reports/summary", nil, http.StatusForbidden, nil)
	var summary struct{ Total int }
	c.do(admin, http.MethodGet, "/reports/summary?employeeId="+employee.ID, nil, http.StatusOK, &summary)
	assert.Equal(t, 1, summary.Total)
}

func TestEmployeeUpdateKeepsLoginAccountInSync(t *testing.T) {
	cfg := journeyConfig(t)
	app, err := server.New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	c := &client{t: t, http: ts.Client(), base: ts.URL + "/api/v1"}

	admin := c.login(cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	suffix := time.Now().UnixNano()

	var factory struct{ ID string }
	c.do(admin, http.MethodPost, "/factories", map[string]any{"name": "Sync Plant", "code": fmt.Sprintf("S%d", suffix%1_000_000)}, http.StatusCreated, &factory)

	oldEmail := fmt.Sprintf("old-%d@example.com", suffix)
	var employee struct{ ID string }
	c.do(admin, http.MethodPost, "/employees", map[string]any{
		"name": "Marta Ruiz", "email": oldEmail, "factoryId": factory.ID, "password": "Marta12345!",
	}, http.StatusCreated, &employee)
	c.login(oldEmail, "Marta12345!")

	newEmail := fmt.Sprintf("new-%d@example.com", suffix)
	c.do(admin, http.MethodPut, "/employees/"+employee.ID, map[string]any{
		"name": "Marta Ruiz", "email": newEmail, "role": "leader", "factoryId": factory.ID,
	}, http.StatusOK, nil)

	var email, role string
	var active bool
	require.NoError(t, app.DB.QueryRow(context.Background(),
		"SELECT u.email, u.role, u.active FROM users u JOIN employees e ON e.user_id = u.id WHERE e.id = $1", employee.ID,
	).Scan(&email, &role, &active))
	assert.Equal(t, newEmail, email)
	assert.Equal(t, "leader", role)
	assert.True(t, active)

	c.do("", http.MethodPost, "/auth/login", map[string]any{"email": oldEmail, "password": "Marta12345!"}, http.StatusUnauthorized, nil)
	c.login(newEmail, "Marta12345!")

	c.do(admin, http.MethodPut, "/employees/"+employee.ID, map[string]any{
		"name": "Marta Ruiz", "email": newEmail, "role": "leader", "factoryId": factory.ID, "active": false,
	}, http.StatusOK, nil)
	c.do("", http.MethodPost, "/auth/login", map[string]any{"email": newEmail, "password": "Marta12345!"}, http.StatusUnauthorized, nil)

	var other struct{ ID string }
	c.do(admin, http.MethodPost, "/employees", map[string]any{
		"name": "Otto Berg", "email": fmt.Sprintf("otto-%d@example.com", suffix), "factoryId": factory.ID, "password": "Otto123456!",
	}, http.StatusCreated, &other)
	c.do(admin, http.MethodPut, "/employees/"+other.ID, map[string]any{
		"name": "Otto Berg", "email": newEmail, "factoryId": factory.ID,
	}, http.StatusConflict, nil)
}

type client struct {
	t    *testing.T
	http *http.Client
	base string
}

func (c *client) login(email, password string) string {
	c.t.Helper()
	var payload struct{ Token string }
	c.do("", http.MethodPost, "/auth/login", map[string]any{"email": email, "password": password}, http.StatusOK, &payload)
	require.NotEmpty(c.t, payload.Token)
	return payload.Token
}

func (c *client) do(token, method, path string, body any, wantStatus int, dst any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(c.t, wantStatus, resp.StatusCode, "%s %s: %+v", method, path, env.Error)
	if dst != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, dst))
	}
}
