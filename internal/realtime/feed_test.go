package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/model"
)

func TestQueueFIFOAndClose(t *testing.T) {
	q := newChangeQueue()
	require.True(t, q.Enqueue(Change{Table: "a"}))
	require.True(t, q.Enqueue(Change{Table: "b"}))
	assert.Equal(t, 2, q.Len())

	<-q.Wait()
	c, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", c.Table)

	q.Close()
	q.Close()
	assert.False(t, q.Enqueue(Change{Table: "c"}))

	c, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "b", c.Table)
	_, ok = q.TryDequeue()
	assert.False(t, ok)

	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestParseChange(t *testing.T) {
	c, err := ParseChange([]byte(`{"kind":"delete","table":"jobs","row":null,"old_row":{"id":"J1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "J1", c.ID())
	assert.Error(t, c.Decode(&model.Job{}))

	_, err = ParseChange([]byte(`{"kind":"truncate","table":"jobs"}`))
	assert.Error(t, err)
	_, err = ParseChange([]byte(`{"kind":"insert"}`))
	assert.Error(t, err)
}

func withSession(s *auth.Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s != nil {
				c.Set("session", s)
			}
			return next(c)
		}
	}
}

func TestWorkerFeedRejectsNonWorkers(t *testing.T) {
	feed := NewFeed(newFakeStore(), NewHub(zap.NewNop()), zap.NewNop())
	e := echo.New()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/realtime/worker", nil)
	require.NoError(t, feed.Worker(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("session", &auth.Session{UserID: "client-c", Role: model.RoleClient})
	require.NoError(t, feed.Worker(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWorkerFeedPushesSnapshots(t *testing.T) {
	st := newFakeStore()
	st.jobs = []model.Job{job("J1", 1, model.JobOpen)}
	hub := NewHub(zap.NewNop())
	feed := NewFeed(st, hub, zap.NewNop())

	e := echo.New()
	e.GET("/realtime/worker", feed.Worker, withSession(&auth.Session{UserID: "worker-w", Role: model.RoleWorker}))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime/worker"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg struct {
		Type string   `json:"type"`
		Data Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, []string{"J1"}, jobIDs(msg.Data.AvailableJobs))

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), change(t, Insert, "jobs", job("J2", 2, model.JobOpen))))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, []string{"J2", "J1"}, jobIDs(msg.Data.AvailableJobs))

	conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
