package stream

import (
	"context"
	"iter"
	"math"
	"sync/atomic"
	"time"

	"github.com/pscheid92/roomcast/internal/eventlog"
)

const (
	EventNotification = "notification"
	EventPriceUpdate  = "price_update"

	kindNotifications = "notifications"
	kindStocks        = "stocks"
)

var notificationTypes = []string{"message", "alert", "info"}

type NotificationGreeting struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type Notification struct {
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type PriceUpdate struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed is a periodic generator whose events are neither numbered nor retained.
type Feed struct {
	kind     string
	cfg      settings
	greeting *eventlog.Event
	next     func(now time.Time) eventlog.Event
	started  atomic.Bool
}

// Notifications streams synthetic notifications addressed to userID.
func Notifications(userID string, opts ...Option) *Feed {
	f := &Feed{
		kind: kindNotifications,
		cfg:  newSettings(DefaultNotificationInterval, 0, opts),
		greeting: &eventlog.Event{
			Type:    EventConnected,
			Payload: NotificationGreeting{UserID: userID, Message: "Connected"},
		},
	}
	f.next = func(now time.Time) eventlog.Event {
		now = now.UTC()
		return eventlog.Event{
			Type: EventNotification,
			Payload: Notification{
				UserID:    userID,
				Type:      notificationTypes[f.cfg.rng.IntN(len(notificationTypes))],
				Content:   "Notification at " + now.Format(time.RFC3339),
				Timestamp: now,
			},
			Timestamp: now,
		}
	}
	return f
}

// Stocks streams a random walk over a fixed set of ticker symbols.
func Stocks(opts ...Option) *Feed {
	symbols := []string{"AAPL", "GOOGL", "MSFT"}
	prices := map[string]float64{"AAPL": 150, "GOOGL": 2800, "MSFT": 300}

	f := &Feed{
		kind: kindStocks,
		cfg:  newSettings(DefaultStockInterval, 0, opts),
	}
	f.next = func(now time.Time) eventlog.Event {
		symbol := symbols[f.cfg.rng.IntN(len(symbols))]
		change := f.cfg.rng.Float64()*10 - 5
		prices[symbol] += change
		return eventlog.Event{
			Type: EventPriceUpdate,
			Payload: PriceUpdate{
				Symbol:    symbol,
				Price:     round2(prices[symbol]),
				Change:    round2(change),
				Timestamp: now.UTC(),
			},
			Timestamp: now,
		}
	}
	return f
}

// Items yields the feed until ctx is cancelled or the consumer stops. A
// feed can be consumed once.
func (f *Feed) Items(ctx context.Context) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		if !f.started.CompareAndSwap(false, true) {
			return
		}
		f.cfg.metrics.Opened(f.kind)
		defer f.cfg.metrics.Closed(f.kind)

		if f.greeting != nil {
			greeting := *f.greeting
			greeting.Timestamp = f.cfg.clock.Now()
			if !f.emit(yield, greeting) {
				return
			}
		}

		ticker := f.cfg.clock.NewTicker(f.cfg.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
			if ctx.Err() != nil {
				return
			}
			if !f.emit(yield, f.next(f.cfg.clock.Now())) {
				return
			}
		}
	}
}

func (f *Feed) emit(yield func(Item) bool, ev eventlog.Event) bool {
	f.cfg.metrics.Yield(ev.Type)
	return yield(Item{Event: ev})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
