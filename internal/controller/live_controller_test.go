package controller

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/presenter"
	"executor-metrics-backend/internal/series"
	"executor-metrics-backend/internal/store"
)

type fakeLiveService struct {
	mu        sync.Mutex
	presenter *presenter.LivePresenter
	updates   chan presenter.Update
	openErr   error
	selected  []string
	// inFlight is queued during Select, as renders of the previous selection.
	inFlight []presenter.Update
	closed   chan string
}

func newFakeLiveService() *fakeLiveService {
	return &fakeLiveService{
		presenter: presenter.NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0),
		updates:   make(chan presenter.Update, 8),
		closed:    make(chan string, 1),
	}
}

func (f *fakeLiveService) OpenSession(ctx context.Context, runID string) (*store.Session, <-chan presenter.Update, error) {
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	return &store.Session{ID: "session-1", RunID: runID, Presenter: f.presenter}, f.updates, nil
}

func (f *fakeLiveService) Select(ctx context.Context, sessionID, path string) (model.ChartPayload, error) {
	f.mu.Lock()
	f.selected = append(f.selected, path)
	inFlight := f.inFlight
	f.inFlight = nil
	f.mu.Unlock()

	payload := f.presenter.Select(path)
	for _, upd := range inFlight {
		f.updates <- upd
	}
	return payload, nil
}

func (f *fakeLiveService) CloseSession(sessionID string) error {
	f.closed <- sessionID
	return nil
}

func dialLive(t *testing.T, svc *fakeLiveService) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterLiveRoutes(router, NewLiveController(svc))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/runs/app-1/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) dto.LiveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg dto.LiveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestLiveController_StreamsUpdates(t *testing.T) {
	svc := newFakeLiveService()
	conn := dialLive(t, svc)

	chart := model.EmptyPayload("sigar.cpu.combined")
	svc.updates <- presenter.Update{Paths: []string{"sigar.cpu.combined"}, Chart: &chart}

	msg := readMessage(t, conn)
	assert.Equal(t, dto.LiveMessagePaths, msg.Type)
	assert.Equal(t, []string{"sigar.cpu.combined"}, msg.Paths)

	msg = readMessage(t, conn)
	assert.Equal(t, dto.LiveMessageChart, msg.Type)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, "sigar.cpu.combined", msg.Payload.MetricPath)
}

func TestLiveController_SelectCommand(t *testing.T) {
	svc := newFakeLiveService()
	conn := dialLive(t, svc)

	require.NoError(t, conn.WriteJSON(map[string]string{"select": "jvm.heap.used"}))
	msg := readMessage(t, conn)
	assert.Equal(t, dto.LiveMessageChart, msg.Type)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, "jvm.heap.used", msg.Payload.MetricPath)

	svc.mu.Lock()
	assert.Equal(t, []string{"jvm.heap.used"}, svc.selected)
	svc.mu.Unlock()
}

func TestLiveController_ClosesSessionOnDisconnect(t *testing.T) {
	svc := newFakeLiveService()
	conn := dialLive(t, svc)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case id := <-svc.closed:
		assert.Equal(t, "session-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not closed")
	}
}

func TestLiveController_OpenFailure(t *testing.T) {
	svc := newFakeLiveService()
	svc.openErr = errors.New("kafka unavailable")
	conn := dialLive(t, svc)

	msg := readMessage(t, conn)
	assert.Equal(t, dto.LiveMessageError, msg.Type)
	assert.NotEmpty(t, msg.Error)
}

func TestLiveController_DropsChartsOfPreviousSelection(t *testing.T) {
	svc := newFakeLiveService()
	conn := dialLive(t, svc)

	old := model.EmptyPayload("jvm.heap.used")
	generation := svc.presenter.Generation()
	svc.mu.Lock()
	for i := 0; i < 3; i++ {
		svc.inFlight = append(svc.inFlight, presenter.Update{Chart: &old, Generation: generation})
	}
	svc.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]string{"select": "sigar.cpu.combined"}))
	msg := readMessage(t, conn)
	assert.Equal(t, dto.LiveMessageChart, msg.Type)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, "sigar.cpu.combined", msg.Payload.MetricPath)

	svc.updates <- presenter.Update{Paths: []string{"sigar.cpu.combined"}, Generation: svc.presenter.Generation()}
	msg = readMessage(t, conn)
	assert.Equal(t, dto.LiveMessagePaths, msg.Type, "no chart of the previous selection was sent in between")
}
