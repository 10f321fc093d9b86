package platform

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// bridgeMessage is the JSON envelope exchanged with the browser companion
// extension over its local debug socket.
type bridgeMessage struct {
	Type        string                   `json:"type"`
	ID          int64                    `json:"id,omitempty"`
	Error       string                   `json:"error,omitempty"`
	RuleID      int                      `json:"rule_id,omitempty"`
	RuleIDs     []int                    `json:"rule_ids,omitempty"`
	ExtensionID string                   `json:"extension_id,omitempty"`
	Extension   *models.ExtensionInfo    `json:"extension,omitempty"`
	Extensions  []models.ExtensionInfo   `json:"extensions,omitempty"`
	Rules       []models.AttributionRule `json:"rules,omitempty"`
	Matches     []models.RuleMatchEvent  `json:"matches,omitempty"`
	Request     *models.RawRequestEvent  `json:"request,omitempty"`
}

const (
	msgListExtensions  = "list_extensions"
	msgRegisterRule    = "register_rule"
	msgUnregisterRules = "unregister_rules"
	msgListRules       = "list_rules"
	msgDrainMatches    = "drain_matches"
	msgResult          = "result"
	msgRequest         = "request"
	msgInstalled       = "extension_installed"
	msgUninstalled     = "extension_uninstalled"
)

// Bridge is the websocket-backed Browser implementation. It maintains a single
// connection to the companion extension, multiplexes request/response calls by
// message id, and redials with exponential backoff when the connection drops.
// All platform failures surface as soft errors per the monitoring error
// policy; the caller retries on the next natural trigger.
type Bridge struct {
	cfg    config.PlatformConfig
	logger zerolog.Logger

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan bridgeMessage

	handlerMu      sync.RWMutex
	requestHandler func(models.RawRequestEvent)
	onInstalled    func(models.ExtensionInfo)
	onUninstalled  func(string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge creates a Bridge for the configured socket URL. Connect must be
// called before any capability method is used.
func NewBridge(cfg config.PlatformConfig, baseLogger zerolog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:     cfg,
		logger:  baseLogger.With().Str("component", "PlatformBridge").Logger(),
		pending: make(map[int64]chan bridgeMessage),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the companion socket and starts the read/reconnect loop.
func (b *Bridge) Connect(ctx context.Context) error {
	conn, err := b.dial(ctx)
	if err != nil {
		return common.WrapError(err, "failed to connect platform bridge")
	}
	b.setConn(conn)

	b.wg.Add(1)
	go b.readLoop()
	b.logger.Info().Str("url", b.cfg.BridgeURL).Msg("Platform bridge connected")
	return nil
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, b.cfg.BridgeURL, nil)
	return conn, err
}

func (b *Bridge) setConn(conn *websocket.Conn) {
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
}

func (b *Bridge) getConn() *websocket.Conn {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	return b.conn
}

// readLoop reads messages until the connection drops, then redials with
// exponential backoff until Close is called.
func (b *Bridge) readLoop() {
	defer b.wg.Done()

	for {
		conn := b.getConn()
		if conn == nil {
			return
		}

		var msg bridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Warn().Err(err).Msg("Bridge connection lost, reconnecting")
			b.failPending()
			if !b.reconnect() {
				return
			}
			continue
		}

		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg bridgeMessage) {
	switch msg.Type {
	case msgResult:
		b.pendingMu.Lock()
		ch, ok := b.pending[msg.ID]
		if ok {
			delete(b.pending, msg.ID)
		}
		b.pendingMu.Unlock()
		if ok {
			ch <- msg
		}
	case msgRequest:
		if msg.Request == nil {
			return
		}
		b.handlerMu.RLock()
		handler := b.requestHandler
		b.handlerMu.RUnlock()
		if handler != nil {
			handler(*msg.Request)
		}
	case msgInstalled:
		if msg.Extension == nil {
			return
		}
		b.handlerMu.RLock()
		handler := b.onInstalled
		b.handlerMu.RUnlock()
		if handler != nil {
			handler(*msg.Extension)
		}
	case msgUninstalled:
		b.handlerMu.RLock()
		handler := b.onUninstalled
		b.handlerMu.RUnlock()
		if handler != nil {
			handler(msg.ExtensionID)
		}
	default:
		b.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown bridge message type")
	}
}

// reconnect redials with exponential backoff. Returns false when the bridge
// has been closed.
func (b *Bridge) reconnect() bool {
	backoff := time.Duration(b.cfg.ReconnectMinSeconds) * time.Second
	maxBackoff := time.Duration(b.cfg.ReconnectMaxSeconds) * time.Second
	if backoff <= 0 {
		backoff = time.Second
	}
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	for {
		select {
		case <-b.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		conn, err := b.dial(b.ctx)
		if err == nil {
			b.setConn(conn)
			b.logger.Info().Msg("Platform bridge reconnected")
			return true
		}

		b.logger.Debug().Err(err).Dur("backoff", backoff).Msg("Bridge redial failed")
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (b *Bridge) failPending() {
	b.pendingMu.Lock()
	for id, ch := range b.pending {
		delete(b.pending, id)
		close(ch)
	}
	b.pendingMu.Unlock()
}

// call sends a request message and waits for the correlated result.
func (b *Bridge) call(ctx context.Context, msg bridgeMessage) (bridgeMessage, error) {
	conn := b.getConn()
	if conn == nil {
		return bridgeMessage{}, common.ErrPlatformUnavailable
	}

	msg.ID = b.nextID.Add(1)
	ch := make(chan bridgeMessage, 1)
	b.pendingMu.Lock()
	b.pending[msg.ID] = ch
	b.pendingMu.Unlock()

	b.writeMu.Lock()
	err := conn.WriteJSON(msg)
	b.writeMu.Unlock()
	if err != nil {
		b.pendingMu.Lock()
		delete(b.pending, msg.ID)
		b.pendingMu.Unlock()
		return bridgeMessage{}, common.WrapError(err, "bridge write failed")
	}

	select {
	case <-ctx.Done():
		b.pendingMu.Lock()
		delete(b.pending, msg.ID)
		b.pendingMu.Unlock()
		return bridgeMessage{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return bridgeMessage{}, common.ErrPlatformUnavailable
		}
		if resp.Error != "" {
			return bridgeMessage{}, common.NewError("bridge error: %s", resp.Error)
		}
		return resp, nil
	}
}

// ListExtensions implements ExtensionEnumerator.
func (b *Bridge) ListExtensions(ctx context.Context) ([]models.ExtensionInfo, error) {
	resp, err := b.call(ctx, bridgeMessage{Type: msgListExtensions})
	if err != nil {
		return nil, err
	}
	return resp.Extensions, nil
}

// RegisterRule implements RuleRegistrar.
func (b *Bridge) RegisterRule(ctx context.Context, ruleID int, extensionID string) error {
	_, err := b.call(ctx, bridgeMessage{Type: msgRegisterRule, RuleID: ruleID, ExtensionID: extensionID})
	return err
}

// UnregisterRules implements RuleRegistrar.
func (b *Bridge) UnregisterRules(ctx context.Context, ruleIDs []int) error {
	if len(ruleIDs) == 0 {
		return nil
	}
	_, err := b.call(ctx, bridgeMessage{Type: msgUnregisterRules, RuleIDs: ruleIDs})
	return err
}

// ListRules implements RuleRegistrar.
func (b *Bridge) ListRules(ctx context.Context) (map[int]string, error) {
	resp, err := b.call(ctx, bridgeMessage{Type: msgListRules})
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(resp.Rules))
	for _, rule := range resp.Rules {
		out[rule.RuleID] = rule.ExtensionID
	}
	return out, nil
}

// DrainMatchedEvents implements MatchPoller.
func (b *Bridge) DrainMatchedEvents(ctx context.Context) ([]models.RuleMatchEvent, error) {
	resp, err := b.call(ctx, bridgeMessage{Type: msgDrainMatches})
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// SetRequestHandler implements RequestFeed.
func (b *Bridge) SetRequestHandler(handler func(models.RawRequestEvent)) {
	b.handlerMu.Lock()
	b.requestHandler = handler
	b.handlerMu.Unlock()
}

// SetLifecycleHandlers implements LifecycleFeed.
func (b *Bridge) SetLifecycleHandlers(onInstalled func(models.ExtensionInfo), onUninstalled func(string)) {
	b.handlerMu.Lock()
	b.onInstalled = onInstalled
	b.onUninstalled = onUninstalled
	b.handlerMu.Unlock()
}

// Close shuts down the bridge and fails any in-flight calls.
func (b *Bridge) Close() error {
	b.cancel()
	b.failPending()
	conn := b.getConn()
	if conn != nil {
		_ = conn.Close()
	}
	b.wg.Wait()
	return nil
}
