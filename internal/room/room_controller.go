package room

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/shalloville/shalloville/internal/host"
	"github.com/shalloville/shalloville/pkg/protocol"
	"github.com/shalloville/shalloville/pkg/wsutils"
	"go.uber.org/fx"
)

const WATCH_INTERVAL = time.Second

type SnapshotSource interface {
	Snapshot() *host.Snapshot
}

type roomController struct {
	source   SnapshotSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
	interval time.Duration
}

func (ctrl *roomController) RoomControllerSnapshot(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctrl.source.Snapshot())
}

func (ctrl *roomController) RoomControllerParticipants(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctrl.source.Snapshot().Participants)
}

func (ctrl *roomController) RoomControllerParticipant(ctx echo.Context) error {
	id := ctx.Param("id")
	for _, p := range ctrl.source.Snapshot().Participants {
		if p.ID == id {
			return ctx.JSON(http.StatusOK, p)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, ErrParticipantNotFound.Error())
}

func (ctrl *roomController) RoomControllerChat(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctrl.source.Snapshot().Chat)
}

func (ctrl *roomController) RoomControllerCounters(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctrl.source.Snapshot().Counters)
}

// RoomControllerWatch streams a snapshot frame whenever the tick counter moved.
func (ctrl *roomController) RoomControllerWatch(ctx echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(ctx.Response().Writer, ctx.Request(), nil)
	if err != nil {
		ctrl.logger.Error("unable upgrade request", slog.String("err", err.Error()))
		return err
	}

	w := wsutils.NewThreadSafeWriter(conn)
	defer w.Close()

	reqCtx, cancel := context.WithCancelCause(ctx.Request().Context())
	defer cancel(nil)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel(ErrWatchCancelByUser)
				return
			}
		}
	}()

	ticker := time.NewTicker(ctrl.interval)
	defer ticker.Stop()

	var last uint64
	sent := false
	for {
		snap := ctrl.source.Snapshot()
		if !sent || snap.Tick != last {
			if err := w.WriteEvent("snapshot", snap); err != nil {
				return nil
			}
			last, sent = snap.Tick, true
		}

		select {
		case <-reqCtx.Done():
			if errors.Is(context.Cause(reqCtx), ErrWatchCancelByUser) {
				return nil
			}
			return context.Cause(reqCtx)
		case <-ticker.C:
		}
	}
}

func (ctrl *roomController) Resolve(c *echo.Echo) error {
	group := c.Group("/room")
	group.GET("", ctrl.RoomControllerSnapshot)
	group.GET("/participants", ctrl.RoomControllerParticipants)
	group.GET("/participants/:id", ctrl.RoomControllerParticipant)
	group.GET("/chat", ctrl.RoomControllerChat)
	group.GET("/counters", ctrl.RoomControllerCounters)
	group.GET("/watch", ctrl.RoomControllerWatch)
	return nil
}

var _ protocol.HttpResolvable = (*roomController)(nil)

type newRoomController_Params struct {
	fx.In

	Host   *host.Host
	Logger *slog.Logger
}

func NewRoomController(params newRoomController_Params) *roomController {
	return newRoomController(params.Host, params.Logger)
}

func newRoomController(source SnapshotSource, logger *slog.Logger) *roomController {
	return &roomController{
		source: source,
		logger: logger.With(slog.String("component", "diagnostics")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		interval: WATCH_INTERVAL,
	}
}

var Module = fx.Module("room",
	fx.Provide(protocol.AsHttpController(NewRoomController)),
)
