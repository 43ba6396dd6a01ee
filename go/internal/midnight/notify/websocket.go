package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketNotifier receives signals from a Gateway. After a reconnect every
// subscribed table is signalled, since changes may have been missed.
type WebSocketNotifier struct {
	url           string
	dialer        *websocket.Dialer
	reconnectWait time.Duration
	reg           *registry

	mu        sync.Mutex
	connected bool
}

func NewWebSocketNotifier(url string, reconnectWait time.Duration) *WebSocketNotifier {
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	return &WebSocketNotifier{
		url:           url,
		dialer:        websocket.DefaultDialer,
		reconnectWait: reconnectWait,
		reg:           newRegistry(),
	}
}

func (n *WebSocketNotifier) Subscribe(_ context.Context, table Table, h Handler) (Subscription, error) {
	id, _ := n.reg.add(table, h)
	return &handle{table: table, id: id, drop: func(t Table, id uint64) error {
		n.reg.remove(t, id)
		return nil
	}}, nil
}

// Connected reports whether the stream is currently open.
func (n *WebSocketNotifier) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// Start keeps a stream open until ctx is cancelled.
func (n *WebSocketNotifier) Start(ctx context.Context) {
	first := true
	for {
		err := n.run(ctx, !first)
		first = false
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("url", n.url).Dur("retry_in", n.reconnectWait).Msg("change stream dropped")
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.reconnectWait):
		}
	}
}

func (n *WebSocketNotifier) run(ctx context.Context, resumed bool) error {
	ws, _, err := n.dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", n.url, err)
	}
	n.setConnected(true)
	defer n.setConnected(false)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-stop:
		}
	}()
	defer ws.Close()

	if resumed {
		n.reg.dispatchAll()
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var sig Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed signal")
			continue
		}
		n.reg.dispatch(sig.Table)
	}
}

func (n *WebSocketNotifier) setConnected(v bool) {
	n.mu.Lock()
	n.connected = v
	n.mu.Unlock()
}
