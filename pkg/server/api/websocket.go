package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bonsai515/pricefeed-go/pkg/logging"
	"github.com/Bonsai515/pricefeed-go/pkg/server/aggregator"
	"github.com/Bonsai515/pricefeed-go/pkg/server/tokens"
)

// WebSocketServer streams aggregated price updates to subscribed clients.
type WebSocketServer struct {
	addr     string
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates chan aggregator.AggregatedPrice

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn          *websocket.Conn
	send          chan []byte
	server        *WebSocketServer
	subscribedAll bool
	subscribed    map[string]bool
	mu            sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type   string   `json:"type"`   // "subscribe", "unsubscribe", "ping"
	Tokens []string `json:"tokens"` // Token symbols the message applies to
}

// PriceUpdateMessage is sent to clients on every hot token refresh.
type PriceUpdateMessage struct {
	Type       string   `json:"type"` // "price_update"
	Token      string   `json:"token"`
	Price      string   `json:"price"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Timestamp  string   `json:"timestamp"` // ISO 8601
}

// NewWebSocketServer creates a new WebSocket server.
func NewWebSocketServer(addr string, logger *logging.Logger) *WebSocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Allow all origins (configure CORS as needed)
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan aggregator.AggregatedPrice, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the WebSocket server and blocks until Stop is called.
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.broadcastUpdates()

	s.logger.Info("Starting WebSocket server", "addr", s.addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", "error", err)
		}
	}()

	<-s.ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Stop stops the WebSocket server.
func (s *WebSocketServer) Stop() {
	s.cancel()
}

// SendUpdate queues a price update for broadcast. Drops the update rather
// than blocking the caller when the queue is saturated.
func (s *WebSocketServer) SendUpdate(price aggregator.AggregatedPrice) {
	select {
	case s.updates <- price:
	default:
		s.logger.Warn("Update channel full, dropping price update", "token", price.Token)
	}
}

// handleWebSocket handles new WebSocket connections.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		server:        s,
		subscribedAll: true, // Subscribe to all by default
		subscribed:    make(map[string]bool),
	}

	s.registerClient(client)

	go client.writePump()
	go client.readPump()

	s.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

func (s *WebSocketServer) registerClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *WebSocketServer) unregisterClient(client *WebSocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
}

// broadcastUpdates drains the update queue until the server stops.
func (s *WebSocketServer) broadcastUpdates() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case price := <-s.updates:
			s.broadcast(price)
		}
	}
}

// broadcast sends one price update to all subscribed clients.
func (s *WebSocketServer) broadcast(price aggregator.AggregatedPrice) {
	message := PriceUpdateMessage{
		Type:       "price_update",
		Token:      price.Token,
		Price:      price.Price.String(),
		Confidence: price.Confidence,
		Sources:    price.Sources,
		Timestamp:  price.ComputedAt.Format(time.RFC3339),
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal price update", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		if client.shouldReceive(price.Token) {
			select {
			case client.send <- data:
			default:
				s.logger.Warn("Client send buffer full, skipping update")
			}
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.server.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.server.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Tokens)
	case "unsubscribe":
		c.unsubscribe(msg.Tokens)
	case "ping":
		c.sendPong()
	default:
		c.server.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

// subscribe subscribes to specific tokens. An empty or "*" list means all.
func (c *WebSocketClient) subscribe(tokenList []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tokenList) == 0 || (len(tokenList) == 1 && tokenList[0] == "*") {
		c.subscribedAll = true
		c.subscribed = make(map[string]bool)
	} else {
		c.subscribedAll = false
		for _, token := range tokenList {
			c.subscribed[tokens.Normalize(token)] = true
		}
	}

	c.server.logger.Debug("Client subscribed", "tokens", tokenList)
}

// unsubscribe unsubscribes from specific tokens.
func (c *WebSocketClient) unsubscribe(tokenList []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tokenList) == 0 || (len(tokenList) == 1 && tokenList[0] == "*") {
		c.subscribedAll = false
		c.subscribed = make(map[string]bool)
	} else {
		for _, token := range tokenList {
			delete(c.subscribed, tokens.Normalize(token))
		}
	}

	c.server.logger.Debug("Client unsubscribed", "tokens", tokenList)
}

// shouldReceive checks if the client is subscribed to this token.
func (c *WebSocketClient) shouldReceive(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return true
	}
	return c.subscribed[token]
}

// sendPong sends a pong response.
func (c *WebSocketClient) sendPong() {
	pong := map[string]string{"type": "pong"}
	data, _ := json.Marshal(pong)
	select {
	case c.send <- data:
	default:
	}
}
