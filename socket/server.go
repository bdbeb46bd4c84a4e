package socket

import (
	"context"
	"log"
	"sync"

	"moveflow_server/models"
	"moveflow_server/services"

	socketio "github.com/googollee/go-socket.io"
)

// Server bridges the in-process session subscriptions onto socket.io. Each
// connected client joins a session by id and receives `sessionUpdated` and
// `newMessage` events fed from the subscription hub; clients also register
// a user room for fire-and-forget notifications.
type Server struct {
	IO       *socketio.Server
	Sessions *services.SessionService

	mu   sync.Mutex
	subs map[string][]*services.Subscription // conn id -> active subscriptions
}

// NewServer initializes the socket.io server and wires its event handlers.
func NewServer(sessions *services.SessionService) *Server {
	srv := &Server{
		IO:       socketio.NewServer(nil),
		Sessions: sessions,
		subs:     make(map[string][]*services.Subscription),
	}

	srv.IO.OnConnect("/", func(c socketio.Conn) error {
		log.Println("✅ Socket connected:", c.ID())
		return nil
	})

	srv.IO.OnEvent("/", "join", func(c socketio.Conn, sessionID string) {
		if sessionID == "" {
			log.Println("❌ Invalid sessionId in join request")
			return
		}
		if err := srv.attach(c, sessionID); err != nil {
			log.Printf("❌ join %s failed for %s: %v", sessionID, c.ID(), err)
			c.Emit("joinError", err.Error())
			return
		}
		log.Printf("👥 Socket %s joined session %s", c.ID(), sessionID)
	})

	srv.IO.OnEvent("/", "register", func(c socketio.Conn, userID string) {
		if userID == "" {
			return
		}
		c.Join("user:" + userID)
	})

	srv.IO.OnError("/", func(c socketio.Conn, err error) {
		log.Println("⚠️ Socket error:", err)
	})

	srv.IO.OnDisconnect("/", func(c socketio.Conn, reason string) {
		srv.release(c.ID())
		log.Println("❌ Socket disconnected:", c.ID(), reason)
	})

	return srv
}

// attach subscribes the connection to the session document and its message
// log; the handles are kept so disconnect can cancel them instead of
// leaking listeners.
func (srv *Server) attach(c socketio.Conn, sessionID string) error {
	docSub, err := srv.Sessions.SubscribeToSession(context.Background(), sessionID, func(session models.Session) {
		c.Emit("sessionUpdated", session)
	})
	if err != nil {
		return err
	}

	msgSub, err := srv.Sessions.SubscribeToMessages(context.Background(), sessionID, func(messages []models.Message) {
		c.Emit("newMessage", messages)
	})
	if err != nil {
		docSub.Cancel()
		return err
	}

	srv.mu.Lock()
	srv.subs[c.ID()] = append(srv.subs[c.ID()], docSub, msgSub)
	srv.mu.Unlock()
	return nil
}

func (srv *Server) release(connID string) {
	srv.mu.Lock()
	subs := srv.subs[connID]
	delete(srv.subs, connID)
	srv.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

// Notifier returns a services.Notifier that pushes to the user's room.
func (srv *Server) Notifier() services.Notifier {
	return &socketNotifier{io: srv.IO}
}

type socketNotifier struct {
	io *socketio.Server
}

func (n *socketNotifier) Notify(participantID, title, body string) {
	n.io.BroadcastToRoom("/", "user:"+participantID, "notification", map[string]string{
		"title": title,
		"body":  body,
	})
}
