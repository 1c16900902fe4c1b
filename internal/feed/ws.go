package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openrange/orbcore/internal/domain"
)

const (
	wsDialTimeout    = 15 * time.Second
	wsReadTimeout    = 30 * time.Second
	wsPingInterval   = 10 * time.Second
	wsReconnectDelay = 2 * time.Second
)

// WSFeed consumes a normalized JSON tick stream over a websocket and pushes
// each tick into the engine. It reconnects with a fixed delay on disconnect.
type WSFeed struct {
	url    string
	symbol string
	submit SubmitFunc
	logger *slog.Logger
}

// NewWSFeed creates a feed reading from the given websocket URL. Ticks for
// other symbols are dropped.
func NewWSFeed(url, symbol string, submit SubmitFunc, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:    url,
		symbol: symbol,
		submit: submit,
		logger: logger.With(slog.String("component", "ws_feed")),
	}
}

// Run connects and reads until the context is cancelled, reconnecting on
// any transport error.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting",
			slog.String("url", f.url),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wsReconnectDelay):
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	f.logger.Info("feed connected", slog.String("url", f.url))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	// Close the connection when the context ends so the read loop unblocks,
	// and keep the peer alive with pings.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-pingDone:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsDialTimeout))
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick domain.PriceTick
		if err := json.Unmarshal(data, &tick); err != nil {
			f.logger.Debug("malformed tick dropped",
				slog.Int("payload_len", len(data)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if f.symbol != "" && tick.Symbol != f.symbol {
			continue
		}
		if err := f.submit(tick); err != nil {
			if errors.Is(err, domain.ErrQueueFull) {
				f.logger.Warn("engine queue full, tick dropped")
				continue
			}
			f.logger.Debug("tick rejected", slog.String("error", err.Error()))
		}
	}
}
