// Package events carries everything the tracker reports to its consumers:
// the CLI log, the websocket feed and the Telegram reporter.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"shell-tracker/internal/types"
)

type Kind string

const (
	KindStarted       Kind = "started"
	KindStopped       Kind = "stopped"
	KindPriceUpdate   Kind = "price_update"
	KindAlert         Kind = "alert"
	KindTrade         Kind = "trade"
	KindStopCondition Kind = "stop_condition"
	KindSignalStatus  Kind = "signal_status"
	KindChartData     Kind = "chart_data"
	KindNewsProcessed Kind = "news_processed"
	KindRSSNews       Kind = "rss_news"
	KindBalance       Kind = "balance"
	KindError         Kind = "error"
)

type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

type Started struct {
	SessionID       string `json:"session_id"`
	DurationMinutes int    `json:"duration_minutes"`
	IntervalSeconds int    `json:"interval_seconds"`
}

type PriceUpdate struct {
	Price     float64 `json:"price"`
	PctChange float64 `json:"pct_change"`
}

const AlertPriceChange = "PRICE_CHANGE"

type Alert struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	PctChange float64 `json:"pct_change"`
}

type ChartData struct {
	Series *types.CandleSeries `json:"series"`
}

type Failure struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// Publisher is what the core components see of the bus.
type Publisher interface {
	Publish(kind Kind, data any)
	ReportError(source string, err error)
}

// Bus fans events out to subscribers. Delivery never blocks the publisher:
// a subscriber whose buffer is full loses its oldest pending event.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	errs   chan Failure
	closed bool
}

var _ Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
		errs: make(chan Failure, 64),
	}
}

func (b *Bus) Publish(kind Kind, data any) {
	ev := Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Time: time.Now(),
		Data: data,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// ReportError publishes an error event and queues it on the error channel.
func (b *Bus) ReportError(source string, err error) {
	if err == nil {
		return
	}
	f := Failure{Source: source, Message: err.Error()}
	b.Publish(KindError, f)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.errs <- f:
	default:
	}
}

// Errors returns the dedicated error channel.
func (b *Bus) Errors() <-chan Failure {
	return b.errs
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func removes it and closes the channel.
func (b *Bus) Subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan Event, buf)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	close(b.errs)
}
