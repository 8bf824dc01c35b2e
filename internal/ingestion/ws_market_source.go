package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"prediction-pipeline/internal/domain"
)

// WSMarketSource collects price and volume claims from a websocket market
// feed. Each poll dials, subscribes, drains ticks for a bounded window, and
// disconnects; the pipeline's cadence makes a persistent connection
// unnecessary.
type WSMarketSource struct {
	toolID      string
	url         string
	instruments []string
	window      time.Duration
	maxTicks    int
	dialer      *websocket.Dialer
}

// WSMarketSourceOptions for creating a WSMarketSource.
type WSMarketSourceOptions struct {
	ToolID      string
	URL         string
	Instruments []string
	Window      time.Duration // default 5s
	MaxTicks    int           // default 100
}

// NewWSMarketSource creates a websocket-backed collector.
func NewWSMarketSource(opts WSMarketSourceOptions) *WSMarketSource {
	window := opts.Window
	if window == 0 {
		window = 5 * time.Second
	}
	maxTicks := opts.MaxTicks
	if maxTicks == 0 {
		maxTicks = 100
	}
	return &WSMarketSource{
		toolID:      opts.ToolID,
		url:         opts.URL,
		instruments: opts.Instruments,
		window:      window,
		maxTicks:    maxTicks,
		dialer:      websocket.DefaultDialer,
	}
}

func (s *WSMarketSource) ToolID() string { return s.toolID }

// tickMessage is the feed's wire format for one market tick.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
	TsMs   int64   `json:"ts_ms"`
}

type subscribeMessage struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// Collect dials the feed, subscribes to the configured instruments, and
// converts the ticks received inside the window into claims. The latest
// tick per instrument wins.
func (s *WSMarketSource) Collect(ctx context.Context) ([]*domain.Claim, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMessage{Op: "subscribe", Symbols: s.instruments}); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	deadline := time.Now().Add(s.window)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	latest := make(map[string]tickMessage)
	for i := 0; i < s.maxTicks; i++ {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// The deadline closing the read is the normal end of a window.
			break
		}
		var tick tickMessage
		if err := json.Unmarshal(payload, &tick); err != nil || tick.Symbol == "" {
			continue
		}
		latest[tick.Symbol] = tick
	}

	if len(latest) == 0 {
		return nil, fmt.Errorf("no ticks received within %s", s.window)
	}

	var claims []*domain.Claim
	for _, tick := range latest {
		ts := tick.TsMs
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		claims = append(claims, &domain.Claim{
			Type:       domain.ClaimTypePrice,
			Instrument: tick.Symbol,
			Value:      tick.Price,
			Confidence: 1,
			Timestamp:  ts,
		})
		if tick.Volume > 0 {
			claims = append(claims, &domain.Claim{
				Type:       domain.ClaimTypeVolume,
				Instrument: tick.Symbol,
				Value:      tick.Volume,
				Confidence: 1,
				Timestamp:  ts,
			})
		}
	}
	return claims, nil
}

// Verify interface compliance at compile time.
var _ Collector = (*WSMarketSource)(nil)
