// Package webchat is the websocket transport. The wire protocol is JSON
// text frames plus raw binary frames for audio:
//
//	inbound:  {"type":"init","content":"<optional session id>"}
//	          {"type":"text","content":"..."}
//	          binary frame = audio blob
//	outbound: {"type":"session","content":"<session id>"}
//	          {"type":"text","content":"..."}
//	          {"type":"error","content":"..."}
//	          binary frame = synthesized audio
//
// Exactly one init must precede any other message on a connection;
// anything else yields an error frame and the connection stays open.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/convohub/convo-gateway/internal/channel"
	"github.com/gorilla/websocket"
)

const maxAudioBytes = 10 << 20

// WSMessage is one JSON frame on the webchat wire.
type WSMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Frame types.
const (
	TypeInit    = "init"
	TypeText    = "text"
	TypeSession = "session"
	TypeError   = "error"
)

type WebchatAdapter struct {
	port     int
	incoming chan *channel.Message
	upgrader websocket.Upgrader
	server   *http.Server
	logger   *slog.Logger

	connMux sync.RWMutex
	conns   map[string]*wsConn
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func NewWebchatAdapter(port int, logger *slog.Logger) *WebchatAdapter {
	return &WebchatAdapter{
		port:     port,
		incoming: make(chan *channel.Message, 100),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:  make(map[string]*wsConn),
		logger: logger,
	}
}

func (w *WebchatAdapter) Name() string {
	return "webchat"
}

func (w *WebchatAdapter) IsEnabled() bool {
	return w.port > 0
}

func (w *WebchatAdapter) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.wsHandler)
	w.server = &http.Server{Addr: ":" + strconv.Itoa(w.port), Handler: mux}

	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Error("webchat server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		w.server.Shutdown(context.Background())
	}()

	return nil
}

func (w *WebchatAdapter) Stop() error {
	close(w.incoming)
	return nil
}

func (w *WebchatAdapter) SendMessage(sessionID string, resp *channel.Response) error {
	w.connMux.RLock()
	conn, exists := w.conns[sessionID]
	w.connMux.RUnlock()
	if !exists {
		return nil // connection already gone
	}

	if err := conn.writeJSON(WSMessage{Type: TypeText, Content: resp.Content}); err != nil {
		return err
	}
	if len(resp.Audio) > 0 {
		return conn.writeBinary(resp.Audio)
	}
	return nil
}

func (w *WebchatAdapter) Incoming() <-chan *channel.Message {
	return w.incoming
}

func (w *WebchatAdapter) wsHandler(rw http.ResponseWriter, r *http.Request) {
	raw, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}

	sessionID := ""
	defer func() {
		if sessionID != "" {
			w.connMux.Lock()
			delete(w.conns, sessionID)
			w.connMux.Unlock()
		}
		raw.Close()
	}()

	for {
		msgType, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if sessionID == "" {
				conn.writeJSON(WSMessage{Type: TypeError, Content: "session not initialized, send init first"})
				continue
			}
			if len(data) > maxAudioBytes {
				conn.writeJSON(WSMessage{Type: TypeError, Content: "audio payload too large"})
				continue
			}
			w.enqueue(sessionID, "", data)

		case websocket.TextMessage:
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				conn.writeJSON(WSMessage{Type: TypeError, Content: "malformed message"})
				continue
			}

			switch msg.Type {
			case TypeInit:
				if sessionID != "" {
					conn.writeJSON(WSMessage{Type: TypeError, Content: "session already initialized"})
					continue
				}
				sessionID = normalizeID(msg.Content)
				w.connMux.Lock()
				w.conns[sessionID] = conn
				w.connMux.Unlock()
				conn.writeJSON(WSMessage{Type: TypeSession, Content: sessionID})
			case TypeText:
				if sessionID == "" {
					conn.writeJSON(WSMessage{Type: TypeError, Content: "session not initialized, send init first"})
					continue
				}
				w.enqueue(sessionID, msg.Content, nil)
			default:
				conn.writeJSON(WSMessage{Type: TypeError, Content: "unknown message type: " + msg.Type})
			}
		}
	}
}

func (w *WebchatAdapter) enqueue(sessionID, content string, audio []byte) {
	w.incoming <- &channel.Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Channel:   "webchat",
		SessionID: sessionID,
		Content:   content,
		Audio:     audio,
		Timestamp: time.Now().Unix(),
	}
}

// normalizeID accepts a client-supplied session id or mints a fresh one
// in the web: namespace.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		buf := make([]byte, 8)
		rand.Read(buf)
		return "web:" + hex.EncodeToString(buf)
	}
	if !strings.HasPrefix(id, "web:") {
		id = "web:" + id
	}
	return id
}
