package backend

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketchat/internal/common"
)

const (
	pongWait          = 60 * time.Second
	resubscribeMinGap = time.Second
	resubscribeMaxGap = 30 * time.Second
)

// subscription owns one WebSocket connection to a channel endpoint. When the
// transport drops, it resubscribes with backoff until closed; events received
// before the drop are never replayed by the client side, so consumers see
// at-least-once delivery across reconnects.
type subscription struct {
	channel string
	wsPath  string
	token   string
	deliver func([]byte)

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
}

func newSubscription(channel, wsPath, token string, deliver func([]byte)) *subscription {
	return &subscription{
		channel: channel,
		wsPath:  wsPath,
		token:   token,
		deliver: deliver,
		done:    make(chan struct{}),
	}
}

// start dials the channel endpoint and launches the read pump. The initial
// dial failure is returned to the caller; later drops are handled internally.
func (s *subscription) start(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	if !s.setConn(conn) {
		return common.ErrHandleClosed
	}

	go s.pump(conn)
	return nil
}

func (s *subscription) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsPath, header)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	return conn, nil
}

// pump reads frames until the connection fails, then resubscribes unless the
// subscription was closed. Any in-flight "currently typing" style state is
// stale after a drop; staleness decay on the consumer covers it, so nothing
// is resumed.
func (s *subscription) pump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			if s.isClosed() {
				return
			}
			log.Printf("backend: subscription %s: %v", s.channel, fmt.Errorf("%w: %v", common.ErrSubscriptionDropped, err))
			conn = s.resubscribe()
			if conn == nil {
				return
			}
			continue
		}

		if s.isClosed() {
			conn.Close()
			return
		}
		s.deliver(data)
	}
}

func (s *subscription) resubscribe() *websocket.Conn {
	backoff := resubscribeMinGap
	for {
		select {
		case <-s.done:
			return nil
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := s.dial(ctx)
		cancel()
		if err == nil {
			if !s.setConn(conn) {
				return nil
			}
			log.Printf("backend: subscription %s reestablished", s.channel)
			return conn
		}

		log.Printf("backend: resubscribe %s failed: %v", s.channel, err)
		backoff *= 2
		if backoff > resubscribeMaxGap {
			backoff = resubscribeMaxGap
		}
	}
}

// setConn records the live connection. A dial that completes after close
// loses the race: the connection is shut and false is returned.
func (s *subscription) setConn(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// close releases the connection. Safe to call more than once.
func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}
