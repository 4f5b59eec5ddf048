package boltz

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
)

const (
	reconnectInterval = 15 * time.Second
	pingInterval      = 30 * time.Second
	pongWait          = 5 * time.Second
	subscribeTimeout  = 5 * time.Second

	readBufferSize       = 1024 * 1024
	updatesChannelBuffer = 50

	swapUpdateChannel = "swap.update"
)

var ErrWebsocketClosed = errors.New("websocket is closed")

type SwapUpdate struct {
	SwapStatusResponse `mapstructure:",squash"`
	Id                 string `json:"id"`
}

// Websocket streams swap.update events of the subscribed swaps. It connects lazily, reconnects when the
// connection drops and disconnects once no swap is left to watch.
type Websocket struct {
	Updates chan SwapUpdate

	url               string
	dialer            websocket.Dialer
	reconnectInterval time.Duration

	// serializes writes on the connection and the acknowledgement of a subscription
	subscribeLock sync.Mutex
	acks          chan struct{}

	lock    sync.Mutex
	conn    *websocket.Conn
	swapIds []string

	// held while sending on Updates so Close cannot close the channel underneath
	updatesLock sync.RWMutex
	closed      bool
}

type wsMessage struct {
	Event   string `json:"event"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	Args    []any  `json:"args"`
}

type wsRequest struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Args    []string `json:"args"`
}

func websocketUrl(apiUrl string) (string, error) {
	parsed, err := url.Parse(apiUrl)
	if err != nil {
		return "", err
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/v2/ws"
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	case "http":
		parsed.Scheme = "ws"
	}
	return parsed.String(), nil
}

func (boltz *Api) NewWebsocket() *Websocket {
	dialer := *websocket.DefaultDialer
	if transport, ok := boltz.Client.Transport.(*http.Transport); ok {
		dialer.Proxy = transport.Proxy
	}
	dialer.ReadBufferSize = readBufferSize

	return &Websocket{
		Updates:           make(chan SwapUpdate, updatesChannelBuffer),
		url:               boltz.URL,
		dialer:            dialer,
		reconnectInterval: reconnectInterval,
		acks:              make(chan struct{}, 1),
	}
}

func (ws *Websocket) isClosed() bool {
	ws.updatesLock.RLock()
	defer ws.updatesLock.RUnlock()
	return ws.closed
}

// Connect dials the websocket and resubscribes to every swap that was subscribed before
func (ws *Websocket) Connect() error {
	if ws.isClosed() {
		return ErrWebsocketClosed
	}
	wsUrl, err := websocketUrl(ws.url)
	if err != nil {
		return err
	}

	conn, _, err := ws.dialer.Dial(wsUrl, nil)
	if err != nil {
		return fmt.Errorf("could not connect to boltz ws at %s: %w", wsUrl, err)
	}

	ws.lock.Lock()
	ws.conn = conn
	swapIds := slices.Clone(ws.swapIds)
	ws.lock.Unlock()
	logger.Infof("Connected to Boltz ws at %s", wsUrl)

	done := make(chan struct{})
	go ws.keepAlive(conn, done)
	go ws.readLoop(conn, done)

	if err := ws.subscribe(swapIds); err != nil {
		return fmt.Errorf("failed to subscribe to existing swaps: %w", err)
	}
	return nil
}

func (ws *Websocket) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
	_ = extend()
	conn.SetPongHandler(func(string) error {
		logger.Silly("Received pong")
		return extend()
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongWait)); err != nil {
				if !ws.isClosed() {
					logger.Warnf("Could not send ping to boltz ws: %v", err)
				}
				return
			}
		}
	}
}

func (ws *Websocket) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			// a connection that was replaced or closed on purpose is not reconnected
			if ws.detach(conn) {
				logger.Errorf("Lost connection to boltz ws: %v", err)
				go ws.reconnectLoop()
			}
			return
		}
		logger.Sillyf("Received websocket message: %s", message)

		if msgType != websocket.TextMessage {
			logger.Warnf("Unknown boltz ws message type: %v", msgType)
			continue
		}
		if err := ws.handleTextMessage(message); err != nil {
			logger.Errorf("Could not handle boltz ws message: %v", err)
		}
	}
}

// detach forgets conn if it is still the active connection and reports whether it was
func (ws *Websocket) detach(conn *websocket.Conn) bool {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	if ws.conn != conn {
		return false
	}
	ws.conn = nil
	return !ws.isClosed()
}

func (ws *Websocket) reconnectLoop() {
	for !ws.isClosed() {
		logger.Infof("Reconnecting to boltz ws in %s", ws.reconnectInterval)
		time.Sleep(ws.reconnectInterval)
		if ws.Connected() {
			return
		}
		err := ws.Connect()
		if err == nil || errors.Is(err, ErrWebsocketClosed) {
			return
		}
		logger.Warnf("Could not reconnect to boltz ws: %v", err)
	}
}

func (ws *Websocket) handleTextMessage(data []byte) error {
	var message wsMessage
	if err := json.Unmarshal(data, &message); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if message.Error != "" {
		return fmt.Errorf("boltz error: %s", message.Error)
	}

	switch message.Event {
	case "subscribe":
		select {
		case ws.acks <- struct{}{}:
		default:
		}
	case "update":
		if message.Channel != swapUpdateChannel {
			logger.Warnf("Unknown boltz ws channel: %s", message.Channel)
			return nil
		}
		updates := make([]SwapUpdate, 0, len(message.Args))
		for _, arg := range message.Args {
			var update SwapUpdate
			if err := mapstructure.Decode(arg, &update); err != nil {
				return fmt.Errorf("invalid swap update: %w", err)
			}
			updates = append(updates, update)
		}
		ws.publish(updates)
	default:
		logger.Warnf("Unknown boltz ws event: %s", message.Event)
	}
	return nil
}

func (ws *Websocket) publish(updates []SwapUpdate) {
	ws.updatesLock.RLock()
	defer ws.updatesLock.RUnlock()
	if ws.closed {
		return
	}
	for _, update := range updates {
		ws.Updates <- update
	}
}

func (ws *Websocket) subscribe(swapIds []string) error {
	if len(swapIds) == 0 {
		return nil
	}
	if ws.isClosed() {
		return ErrWebsocketClosed
	}
	logger.Infof("Subscribing to Swaps: %v", swapIds)

	ws.subscribeLock.Lock()
	defer ws.subscribeLock.Unlock()

	// drop a stale acknowledgement of an earlier request that timed out
	select {
	case <-ws.acks:
	default:
	}

	ws.lock.Lock()
	conn := ws.conn
	ws.lock.Unlock()
	if conn == nil {
		return errors.New("websocket is not connected")
	}
	if err := conn.WriteJSON(wsRequest{Op: "subscribe", Channel: swapUpdateChannel, Args: swapIds}); err != nil {
		return err
	}

	select {
	case <-ws.acks:
		return nil
	case <-time.After(subscribeTimeout):
		return errors.New("no answer from boltz")
	}
}

// Subscribe starts streaming updates of swapIds, connecting first if needed
func (ws *Websocket) Subscribe(swapIds []string) error {
	if len(swapIds) == 0 {
		return nil
	}
	if !ws.Connected() {
		if err := ws.Connect(); err != nil {
			return fmt.Errorf("could not connect boltz ws: %w", err)
		}
	}
	if err := ws.subscribe(swapIds); err != nil {
		if errors.Is(err, ErrWebsocketClosed) {
			return err
		}
		// the connection might be dead without us noticing yet
		if err := ws.Reconnect(); err != nil {
			return fmt.Errorf("could not reconnect boltz ws: %w", err)
		}
		if err := ws.subscribe(swapIds); err != nil {
			return err
		}
	}

	ws.lock.Lock()
	for _, id := range swapIds {
		if !slices.Contains(ws.swapIds, id) {
			ws.swapIds = append(ws.swapIds, id)
		}
	}
	ws.lock.Unlock()
	return nil
}

// Unsubscribe stops tracking swapId. The connection is closed once no swap is left.
func (ws *Websocket) Unsubscribe(swapId string) {
	ws.lock.Lock()
	ws.swapIds = slices.DeleteFunc(ws.swapIds, func(id string) bool { return id == swapId })
	remaining := len(ws.swapIds)
	ws.lock.Unlock()
	logger.Debugf("Unsubscribed from swap %s", swapId)

	if remaining == 0 {
		logger.Debugf("No more pending swaps, disconnecting websocket")
		if err := ws.disconnect(); err != nil {
			logger.Warnf("Could not close boltz ws: %v", err)
		}
	}
}

// Subscribed returns the ids of all swaps updates are received for.
func (ws *Websocket) Subscribed() []string {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	return slices.Clone(ws.swapIds)
}

func (ws *Websocket) disconnect() error {
	ws.lock.Lock()
	conn := ws.conn
	ws.conn = nil
	ws.lock.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Close disconnects for good and closes the Updates channel
func (ws *Websocket) Close() error {
	ws.updatesLock.Lock()
	if ws.closed {
		ws.updatesLock.Unlock()
		return nil
	}
	ws.closed = true
	close(ws.Updates)
	ws.updatesLock.Unlock()
	return ws.disconnect()
}

func (ws *Websocket) Connected() bool {
	ws.lock.Lock()
	defer ws.lock.Unlock()
	return ws.conn != nil
}

func (ws *Websocket) Reconnect() error {
	logger.Infof("Force reconnecting to Boltz ws")
	if err := ws.disconnect(); err != nil {
		logger.Warnf("Could not close boltz ws: %v", err)
	}
	return ws.Connect()
}
