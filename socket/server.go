package socket

import (
	"context"
	"net/http"
	"sync"

	"vibin_notifier/models"
	"vibin_notifier/services"

	socketio "github.com/googollee/go-socket.io"
	"github.com/sirupsen/logrus"
)

const namespace = "/"

// Events emitted to UI clients
const (
	EventInApp              = "inAppEvent"
	EventSystemNotification = "systemNotification"
)

// ChatMessage is what a client emits with "sendMessage"
type ChatMessage struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	EventID     string `json:"eventId"`
	Text        string `json:"text"`
}

// Hub carries notifications to the UI clients of each user. Clients join a room named
// after their user id and report lifecycle changes over the same connection.
type Hub struct {
	server *socketio.Server

	mu          sync.RWMutex
	onLifecycle func(userID, state string) error
	onMessage   func(ctx context.Context, msg ChatMessage) error
}

var _ services.Presenter = (*Hub)(nil)

// NewSocketServer initializes the Socket.IO hub
func NewSocketServer() *Hub {
	h := &Hub{server: socketio.NewServer(nil)}

	h.server.OnConnect(namespace, func(c socketio.Conn) error {
		logrus.Debugf("✅ Socket connected: %s", c.ID())
		return nil
	})

	h.server.OnEvent(namespace, "join", func(c socketio.Conn, userID string) {
		if userID == "" {
			logrus.Warn("❌ Invalid userId in join request")
			return
		}
		c.SetContext(userID)
		c.Join(userID)
		logrus.Infof("👥 Socket %s joined as %s", c.ID(), userID)
	})

	h.server.OnEvent(namespace, "lifecycle", func(c socketio.Conn, state string) {
		userID, _ := c.Context().(string)
		if err := h.HandleLifecycle(userID, state); err != nil {
			logrus.WithError(err).WithField("userId", userID).Warn("⚠️ Lifecycle event rejected")
		}
	})

	h.server.OnEvent(namespace, "sendMessage", func(c socketio.Conn, msg ChatMessage) {
		if sender, _ := c.Context().(string); sender != "" {
			msg.SenderID = sender
		}
		if err := h.HandleMessage(context.Background(), msg); err != nil {
			logrus.WithError(err).WithField("senderId", msg.SenderID).Warn("⚠️ Message notification not sent")
		}
	})

	h.server.OnError(namespace, func(c socketio.Conn, err error) {
		logrus.WithError(err).Warn("⚠️ Socket error")
	})

	h.server.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		logrus.Debugf("❌ Socket disconnected: %s (%s)", c.ID(), reason)
	})

	return h
}

// OnLifecycle sets the receiver of lifecycle events
func (h *Hub) OnLifecycle(fn func(userID, state string) error) {
	h.mu.Lock()
	h.onLifecycle = fn
	h.mu.Unlock()
}

// OnMessage sets the receiver of chat messages
func (h *Hub) OnMessage(fn func(ctx context.Context, msg ChatMessage) error) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

func (h *Hub) HandleLifecycle(userID, state string) error {
	if userID == "" {
		return errNotJoined
	}
	h.mu.RLock()
	fn := h.onLifecycle
	h.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(userID, state)
}

func (h *Hub) HandleMessage(ctx context.Context, msg ChatMessage) error {
	if msg.SenderID == "" || msg.RecipientID == "" {
		return errIncompleteMessage
	}
	h.mu.RLock()
	fn := h.onMessage
	h.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, msg)
}

// Serve runs the Socket.IO event loop in the background
func (h *Hub) Serve() {
	go func() {
		if err := h.server.Serve(); err != nil {
			logrus.WithError(err).Error("❌ Socket server stopped")
		}
	}()
}

func (h *Hub) Close() error {
	return h.server.Close()
}

// Handler mounts the hub on an HTTP router
func (h *Hub) Handler() http.Handler {
	return h.server
}

func (h *Hub) PresentSystem(ctx context.Context, userID string, n models.SystemNotification) {
	h.server.BroadcastToRoom(namespace, userID, EventSystemNotification, n)
}

func (h *Hub) PresentInApp(ctx context.Context, userID string, e models.InAppEvent) {
	h.server.BroadcastToRoom(namespace, userID, EventInApp, e)
}
