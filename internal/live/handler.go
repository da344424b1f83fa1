package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/motion-coach/internal/coaching"
	"github.com/ashureev/motion-coach/internal/identity"
)

const (
	// maxMessageBytes fits one event with a base64 JPEG frame.
	maxMessageBytes = 4 << 20
	// maxInFlight bounds concurrent feedback calls per connection.
	maxInFlight = 4
)

type errorMessage struct {
	Error string `json:"error"`
}

// Handler upgrades GET /ws/coaching and feeds each inbound event through
// the engine, answering with one result per event. Events are committed in
// arrival order; only feedback production runs off the read loop, so a
// reply carrying feedback may arrive after replies to later events.
type Handler struct {
	engine         *coaching.Engine
	conns          *ConnManager
	originPatterns []string
	logger         *slog.Logger
}

// NewHandler creates a live handler. Empty originPatterns accept any origin.
func NewHandler(engine *coaching.Engine, conns *ConnManager, originPatterns []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &Handler{engine: engine, conns: conns, originPatterns: originPatterns, logger: logger}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(maxMessageBytes)

	h.conns.Register(userID, ws)
	h.logger.Info("Live coaching connected", "user_id", userID, "ip", identity.IPFromRequest(r))

	defer func() {
		if h.conns.Unregister(userID, ws) {
			if summary, found := h.engine.Stop(userID); found {
				h.logger.Info("Live coaching disconnected",
					"user_id", userID,
					"rep_count", summary.RepCount,
					"duration_seconds", summary.DurationSeconds)
			}
		}
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	h.readLoop(gctx, ws, g, userID)
	cancel()
	_ = g.Wait()
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, g *errgroup.Group, userID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var ev coaching.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			h.write(ctx, ws, userID, errorMessage{Error: "invalid event: " + err.Error()})
			continue
		}
		ev.UserID = userID

		p, err := h.engine.Commit(ctx, ev)
		if err != nil {
			h.write(ctx, ws, userID, errorMessage{Error: err.Error()})
			continue
		}
		if !p.NeedsFeedback() {
			h.write(ctx, ws, userID, p.Result)
			continue
		}

		// Go blocks once maxInFlight feedback calls are outstanding, which
		// applies backpressure to the reader.
		g.Go(func() error {
			h.write(ctx, ws, userID, h.engine.Finish(ctx, p))
			return nil
		})
	}
}

func (h *Handler) write(ctx context.Context, ws *websocket.Conn, userID string, v interface{}) {
	if err := wsjson.Write(ctx, ws, v); err != nil && ctx.Err() == nil {
		h.logger.Debug("WebSocket write error", "error", err, "user_id", userID)
	}
}
