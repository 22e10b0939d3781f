package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/apiserver/config"
	"github.com/softdesk/apiserver/internal/auth"
	"github.com/softdesk/apiserver/internal/services"
	"github.com/softdesk/apiserver/internal/services/servicestest"
	"github.com/softdesk/apiserver/types"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	store  *servicestest.Store
	tokens *auth.TokenManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := servicestest.New()
	deps := services.Deps{
		Users:        st.Users,
		Projects:     st.Projects,
		Contributors: st.Contributors,
		Issues:       st.Issues,
		Comments:     st.Comments,
	}
	tokens := auth.NewTokenManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := chi.NewRouter()
	Mount(router, Services{
		Users:    services.NewUserService(deps),
		Projects: services.NewProjectService(deps),
		Issues:   services.NewIssueService(deps),
		Comments: services.NewCommentService(deps),
	}, tokens, nil, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, server: srv, store: st, tokens: tokens}
}

func (a *testAPI) do(method, path, token string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, data
}

// signUp registers username through the API and returns its access token.
func (a *testAPI) signUp(username string) (int, string) {
	a.t.Helper()
	resp, body := a.do(http.MethodPost, "/signup", "", SignUpRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "s3cret-pass",
		Password2: "s3cret-pass",
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, string(body))
	var out SignUpResponse
	require.NoError(a.t, json.Unmarshal(body, &out))
	return out.User.ID, out.Tokens.Access
}

func (a *testAPI) createProject(token, title string) types.Project {
	a.t.Helper()
	resp, body := a.do(http.MethodPost, "/projects", token, map[string]string{
		"title":       title,
		"description": "desc",
		"type":        "WEB",
	})
	require.Equal(a.t, http.StatusCreated, resp.StatusCode, string(body))
	var p types.Project
	require.NoError(a.t, json.Unmarshal(body, &p))
	return p
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestSignUpLoginRefresh(t *testing.T) {
	api := newTestAPI(t)

	resp, body := api.do(http.MethodPost, "/signup", "", SignUpRequest{
		Username: "alice", Email: "alice@example.com", Password: "pw-one", Password2: "pw-two",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "passwords do not match", decodeError(t, body).Fields["password"])
	assert.Zero(t, api.store.Counts().Users)

	long := strings.Repeat("x", 100)
	resp, body = api.do(http.MethodPost, "/signup", "", SignUpRequest{
		Username: "alice", Email: "alice@example.com", Password: long, Password2: long,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Fields["password"], "72 bytes")
	assert.Zero(t, api.store.Counts().Users)

	resp, body = api.do(http.MethodPost, "/signup", "", SignUpRequest{
		Username: "alice", Email: "alice@example.com", Password: "pw-one", Password2: "pw-one",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var signed SignUpResponse
	require.NoError(t, json.Unmarshal(body, &signed))
	assert.Equal(t, "alice", signed.User.Username)
	assert.Equal(t, "alice@example.com", signed.User.Email)
	assert.NotEmpty(t, signed.Message)
	assert.NotEmpty(t, signed.Tokens.Access)
	assert.NotEmpty(t, signed.Tokens.Refresh)
	assert.NotContains(t, string(body), "password")

	resp, body = api.do(http.MethodPost, "/login", "", LoginRequest{Username: "alice", Password: "pw-one"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(body, &pair))

	resp, _ = api.do(http.MethodPost, "/login", "", LoginRequest{Username: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = api.do(http.MethodPost, "/login", "", LoginRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Fields, services.NonFieldErrors)

	resp, body = api.do(http.MethodPost, "/token/refresh", "", RefreshRequest{Refresh: pair.Refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed RefreshResponse
	require.NoError(t, json.Unmarshal(body, &refreshed))
	assert.NotEmpty(t, refreshed.Access)

	resp, _ = api.do(http.MethodPost, "/token/refresh", "", RefreshRequest{Refresh: pair.Access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/projects", refreshed.Access, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(http.MethodGet, "/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/projects", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	id, token := api.signUp("alice")
	api.store.Users.SetActive(id, false)
	resp, _ = api.do(http.MethodGet, "/projects", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do(http.MethodPost, "/login", "", LoginRequest{Username: "alice", Password: "s3cret-pass"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProjectEndpoints(t *testing.T) {
	api := newTestAPI(t)
	aliceID, alice := api.signUp("alice")
	bobID, bob := api.signUp("bob")
	_, carol := api.signUp("carol")

	p := api.createProject(alice, "tracker")
	assert.Equal(t, aliceID, p.AuthorID)
	assert.Equal(t, []int{}, p.Contributors)
	projectPath := fmt.Sprintf("/projects/%d", p.ID)

	resp, body := api.do(http.MethodPost, projectPath+"/users", alice, ContributorRequest{UserID: bobID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var added ContributorResponse
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, bobID, added.Contributor.User.ID)
	assert.NotEmpty(t, added.Message)

	resp, _ = api.do(http.MethodPost, projectPath+"/users", alice, ContributorRequest{UserID: bobID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, api.store.Counts().Contributors)

	resp, body = api.do(http.MethodPost, projectPath+"/users", alice, ContributorRequest{UserID: 999})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown user", decodeError(t, body).Fields["user_id"])

	resp, body = api.do(http.MethodGet, projectPath, bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got types.Project
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []int{bobID}, got.Contributors)

	resp, body = api.do(http.MethodGet, projectPath, carol, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "project not found", decodeError(t, body).Error)

	resp, body = api.do(http.MethodPatch, projectPath, bob, map[string]string{"title": "mine now"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not the project's author", decodeError(t, body).Error)

	resp, body = api.do(http.MethodPut, projectPath, alice, map[string]string{"title": "renamed"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Fields, "type")

	resp, body = api.do(http.MethodPatch, projectPath, alice, map[string]any{"title": "renamed", "author": bobID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, aliceID, got.AuthorID)

	resp, _ = api.do(http.MethodDelete, fmt.Sprintf("%s/users/%d", projectPath, bobID), alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = api.do(http.MethodDelete, fmt.Sprintf("%s/users/%d", projectPath, bobID), alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.do(http.MethodGet, "/projects/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(http.MethodDelete, projectPath, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, api.store.Counts().Projects)
}

func TestIssueAndCommentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	aliceID, alice := api.signUp("alice")
	bobID, bob := api.signUp("bob")
	_, carol := api.signUp("carol")

	p := api.createProject(alice, "tracker")
	resp, _ := api.do(http.MethodPost, fmt.Sprintf("/projects/%d/users", p.ID), alice, ContributorRequest{UserID: bobID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	issuesPath := fmt.Sprintf("/projects/%d/issues", p.ID)
	resp, body := api.do(http.MethodPost, issuesPath, alice, map[string]any{
		"title":       "crash",
		"description": "on save",
		"priority":    "ELEVEE",
		"tag":         "BUG",
		"status":      "A_FAIRE",
		"project":     9999,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var issue types.Issue
	require.NoError(t, json.Unmarshal(body, &issue))
	assert.Equal(t, p.ID, issue.ProjectID)
	assert.Equal(t, aliceID, issue.Author.ID)
	issuePath := fmt.Sprintf("%s/%d", issuesPath, issue.ID)

	resp, _ = api.do(http.MethodGet, issuePath, carol, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.do(http.MethodPatch, issuePath, bob, map[string]string{"status": "TERMINE"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.do(http.MethodPatch, issuePath, alice, map[string]string{"status": "TERMINE"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &issue))
	assert.Equal(t, types.StatusDone, issue.Status)

	resp, body = api.do(http.MethodGet, issuesPath, bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issues []types.Issue
	require.NoError(t, json.Unmarshal(body, &issues))
	assert.Len(t, issues, 1)

	commentsPath := issuePath + "/comments"
	resp, body = api.do(http.MethodPost, commentsPath, bob, map[string]string{"description": "confirmed"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var comment types.Comment
	require.NoError(t, json.Unmarshal(body, &comment))
	assert.Equal(t, issue.ID, comment.IssueID)
	assert.Equal(t, "bob", comment.Author.Username)
	commentPath := fmt.Sprintf("%s/%d", commentsPath, comment.ID)

	resp, _ = api.do(http.MethodDelete, commentPath, alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = api.do(http.MethodPut, commentPath, bob, map[string]string{"description": "fixed in 1.2"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = api.do(http.MethodGet, commentsPath, alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var comments []types.Comment
	require.NoError(t, json.Unmarshal(body, &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "fixed in 1.2", comments[0].Description)

	resp, _ = api.do(http.MethodDelete, issuePath, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, api.store.Counts().Comments)
}

func TestUserEndpoints(t *testing.T) {
	api := newTestAPI(t)
	_, alice := api.signUp("alice")
	_, bob := api.signUp("bob")
	api.createProject(alice, "tracker")

	resp, body := api.do(http.MethodGet, "/users", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []types.UserSummary
	require.NoError(t, json.Unmarshal(body, &users))
	assert.Len(t, users, 2)
	assert.NotContains(t, string(body), "email")

	resp, _ = api.do(http.MethodDelete, "/users/me", alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, api.store.Counts().Projects)

	resp, _ = api.do(http.MethodGet, "/projects", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(pinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Healthz(pinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteServiceErrorFallsBackTo500(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger, errors.New("boom"), "failed to do thing")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to do thing", decodeError(t, rec.Body.Bytes()).Error)
}
