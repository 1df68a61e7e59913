package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"executor-metrics-backend/internal/dto"
	"executor-metrics-backend/internal/model"
	"executor-metrics-backend/internal/presenter"
	"executor-metrics-backend/internal/service"
	"executor-metrics-backend/internal/store"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

type LiveController struct {
	liveService service.LiveService
	upgrader    websocket.Upgrader
}

func NewLiveController(liveService service.LiveService) *LiveController {
	return &LiveController{
		liveService: liveService,
		upgrader: websocket.Upgrader{
			// CORS is handled by the router middleware.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func RegisterLiveRoutes(router *gin.Engine, controller *LiveController) {
	router.GET("/api/v1/runs/:runId/live", controller.StreamRun)
}

// selectReply is the outcome of one {"select":...} command.
type selectReply struct {
	payload model.ChartPayload
	err     error
}

func writeMessage(conn *websocket.Conn, msg dto.LiveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// StreamRun godoc
// @Summary      Follow a run live
// @Description  Websocket. Replays the run's sample stream, sends {"type":"paths"} once the first sample arrives and {"type":"chart"} on every re-render. Clients select a metric with {"select":"<path>"}; "" or "NULL" clears the chart. Charts rendered for a previous selection are never sent after the reply to a newer one.
// @Tags         live
// @Param        runId  path  string  true  "Run id"
// @Router       /api/v1/runs/{runId}/live [get]
func (c *LiveController) StreamRun(ctx *gin.Context) {
	runID := ctx.Param("runId")
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	session, updates, err := c.liveService.OpenSession(ctx.Request.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to open live session")
		_ = writeMessage(conn, dto.LiveMessage{Type: dto.LiveMessageError, Error: "failed to open live session"})
		return
	}
	defer func() {
		if err := c.liveService.CloseSession(session.ID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to close live session")
		}
	}()

	// Only this goroutine writes to conn. Replies and stream updates are
	// ordered here, and stream charts are checked against the selection at
	// write time.
	replies := make(chan selectReply)
	readDone := make(chan struct{})
	writerDone := make(chan struct{})
	defer close(writerDone)
	go c.readCommands(session.ID, conn, replies, readDone, writerDone)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				return
			}
			upd, ok = session.Presenter.Fresh(upd)
			if !ok {
				log.Trace().Str("session_id", session.ID).Msg("Dropping chart of a previous selection")
				continue
			}
			if err := sendUpdate(conn, upd); err != nil {
				log.Debug().Err(err).Str("session_id", session.ID).Msg("Live client write failed")
				return
			}
		case reply := <-replies:
			if reply.err != nil {
				_ = writeMessage(conn, dto.LiveMessage{Type: dto.LiveMessageError, Error: reply.err.Error()})
				return
			}
			if err := writeMessage(conn, dto.LiveMessage{Type: dto.LiveMessageChart, Payload: &reply.payload}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func sendUpdate(conn *websocket.Conn, upd presenter.Update) error {
	if upd.Paths != nil {
		if err := writeMessage(conn, dto.LiveMessage{Type: dto.LiveMessagePaths, Paths: upd.Paths}); err != nil {
			return err
		}
	}
	if upd.Chart != nil {
		return writeMessage(conn, dto.LiveMessage{Type: dto.LiveMessageChart, Payload: upd.Chart})
	}
	return nil
}

func (c *LiveController) readCommands(sessionID string, conn *websocket.Conn, replies chan<- selectReply, done chan<- struct{}, writerDone <-chan struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var cmd dto.LiveCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session_id", sessionID).Msg("Live client read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if cmd.Select == nil {
			continue
		}

		payload, err := c.liveService.Select(context.Background(), sessionID, *cmd.Select)
		select {
		case replies <- selectReply{payload: payload, err: err}:
		case <-writerDone:
			return
		}
		if err != nil {
			return
		}
	}
}
