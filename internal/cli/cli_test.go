package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoque/apikit/internal/mockapi"
	"github.com/samhoque/apikit/pkg/httpclient"
)

// setupCLI points the CLI at a fresh mock API with a native store in a temp
// directory.
func setupCLI(t *testing.T) *mockapi.Server {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	api := mockapi.New()
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	t.Setenv("APIKIT_BASE_URL", ts.URL)
	t.Setenv("APIKIT_PLATFORM", "native")
	t.Setenv("APIKIT_STORAGE_PATH", filepath.Join(dir, "store.db"))
	t.Setenv("APIKIT_LOG_LEVEL", "error")
	t.Setenv("APIKIT_QUERY_RETRY", "0")
	return api
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := execute(cmd)
	assert.Nil(t, current)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	setupCLI(t)
	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"v0.1.0"}`, out)
}

func TestUsersCommands(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "Leanne Graham")

	out, err = runCLI(t, "users", "list", "--per-page", "1", "--page", "2", "--json")
	require.NoError(t, err)
	var page []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page, 1)
	assert.Equal(t, "Ervin Howell", page[0]["name"])

	out, err = runCLI(t, "users", "get", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Clementine Bauch")
	assert.Contains(t, out, "McKenziehaven")

	out, err = runCLI(t, "users", "create", "--name", "Ann Example", "--username", "ann", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user 4")

	out, err = runCLI(t, "users", "update", "4", "--phone", "555-0100", "--json")
	require.NoError(t, err)
	var updated map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, "555-0100", updated["phone"])

	out, err = runCLI(t, "users", "delete", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted user 4")

	_, err = runCLI(t, "users", "get", "4")
	apiErr, ok := httpclient.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	_, err = runCLI(t, "users", "get", "zero")
	assert.EqualError(t, err, `invalid user id "zero"`)

	_, err = runCLI(t, "users", "create", "--name", "No Email", "--username", "nomail")
	assert.ErrorContains(t, err, "email is required")
}

func TestRequestCommand(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "request", "GET", "/users/1", "--field", "address.city")
	require.NoError(t, err)
	assert.Equal(t, "Gwenborough\n", out)

	out, err = runCLI(t, "request", "get", "/users", "--param", "_limit=2", "--json")
	require.NoError(t, err)
	var resp struct {
		Status int              `json:"status"`
		Data   []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Len(t, resp.Data, 2)

	out, err = runCLI(t, "request", "POST", "/users", "--data", `{"name":"Bo","username":"bo","email":"bo@example.com"}`, "--field", "id", "--json")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = runCLI(t, "request", "TRACE", "/users")
	assert.ErrorContains(t, err, "unsupported method")
	_, err = runCLI(t, "request", "POST", "/users", "--data", "{nope")
	assert.ErrorContains(t, err, "not valid JSON")
	_, err = runCLI(t, "request", "GET", "/users/1", "--field", "missing.path")
	assert.ErrorContains(t, err, "not found in response")
	_, err = runCLI(t, "request", "GET", "/users", "--param", "novalue")
	assert.ErrorContains(t, err, "expected key=value")
}

func TestAuthCommands(t *testing.T) {
	api := setupCLI(t)

	out, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	_, err = runCLI(t, "login")
	assert.ErrorContains(t, err, "no credentials provided")

	out, err = runCLI(t, "login", "--username", "Bret", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "Token expires at:")

	// the token survives across invocations in the native store
	out, err = runCLI(t, "status", "--json")
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, true, status["logged_in"])
	assert.Equal(t, "native", status["platform"])

	out, err = runCLI(t, "request", "GET", "/auth/me", "--field", "username")
	require.NoError(t, err)
	assert.Equal(t, "Bret\n", out)

	out, err = runCLI(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = runCLI(t, "request", "GET", "/auth/me")
	apiErr, ok := httpclient.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	token, _, err := api.IssueToken(2)
	require.NoError(t, err)
	out, err = runCLI(t, "login", "--token", token)
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")
	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in until")
}

func TestTokenExpiry(t *testing.T) {
	api := mockapi.New(mockapi.WithTokenTTL(2 * time.Hour))
	token, expiry, err := api.IssueToken(1)
	require.NoError(t, err)
	assert.WithinDuration(t, expiry, tokenExpiry(token), time.Second)

	assert.True(t, tokenExpiry("not-a-jwt").IsZero())
	assert.True(t, tokenExpiry("").IsZero())
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    httpclient.Params
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"single", []string{"a=1"}, httpclient.Params{"a": "1"}, false},
		{"empty value", []string{"a="}, httpclient.Params{"a": ""}, false},
		{"value with equals", []string{"q=a=b"}, httpclient.Params{"q": "a=b"}, false},
		{"repeated", []string{"id=1", "id=2", "id=3"}, httpclient.Params{"id": []string{"1", "2", "3"}}, false},
		{"missing equals", []string{"a"}, nil, true},
		{"missing key", []string{"=1"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("plain"), "plain"},
		{&httpclient.Error{Message: "Network error occurred", Status: httpclient.StatusNetworkError}, "Network error occurred (check your connection and --base-url)"},
		{&httpclient.Error{Message: "Request timeout", Status: httpclient.StatusTimeout}, "Request timeout (try a larger --timeout)"},
		{&httpclient.Error{Message: "Unauthorized", Status: http.StatusUnauthorized}, `Unauthorized (log in with "apikit login")`},
		{&httpclient.Error{Message: "Bad Gateway", Status: http.StatusBadGateway}, "Bad Gateway (status 502)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeError(tt.err))
	}

	out := errorOutput(&httpclient.Error{Message: "Not Found", Status: 404, Data: map[string]any{"error": "not found"}})
	assert.Equal(t, 404, out["status"])
	assert.Equal(t, map[string]any{"error": "not found"}, out["data"])
}
