package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/storage"
	"github.com/softdesk/apiserver/types"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/projects/{projectID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/projects/1", "/projects/2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/projects/{projectID}", "404")))
}

func TestMiddleware_Unmatched(t *testing.T) {
	m := New()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ProjectsArchived.Inc()
	m.EventsPublished.WithLabelValues("project.created", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "softdesk_projects_archived_total 1"))
	assert.True(t, strings.Contains(string(body), `softdesk_events_published_total{outcome="ok",type="project.created"} 1`))
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errors.New("broker down") }

func TestPublisher_CountsOutcome(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.Publisher(events.Nop{}).Publish(ctx, events.Event{Type: events.IssueCreated}))
	require.Error(t, m.Publisher(failingPublisher{}).Publish(ctx, events.Event{Type: events.IssueCreated}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("issue.created", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("issue.created", outcomeError)))
}

func TestArchiver_CountsSuccessfulSnapshots(t *testing.T) {
	m := New()
	objects := storage.NewMemory("archive")
	archiver := m.Archiver(archive.New(objects))

	key, err := archiver.Archive(context.Background(), archive.Snapshot{Project: types.Project{ID: 7}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProjectsArchived))

	require.NoError(t, archiver.Discard(context.Background(), key))
	assert.Empty(t, objects.Keys())
}
