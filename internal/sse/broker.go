// Package sse streams media check results to browsers as Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/mediacheck/internal/models"
)

// Event types.
const (
	// EventMediaChecked is sent after every completed media check.
	EventMediaChecked = "media.checked"
	// EventMediaChanged is sent when files in the media folder settle after a change.
	EventMediaChanged = "media.changed"
)

// FolderChange is the payload of a media.changed event.
type FolderChange struct {
	Files []string `json:"files"`
}

const (
	clientBuffer = 64
	retryMillis  = 3000
)

// Event is one SSE message. ID becomes the "id:" field when set.
type Event struct {
	ID   string `json:"-"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// CheckSummary is the payload of a media.checked event.
type CheckSummary struct {
	RunID      string `json:"run_id"`
	Missing    int    `json:"missing"`
	Unused     int    `json:"unused"`
	Warnings   int    `json:"warnings"`
	ErrorNotes int    `json:"error_notes"`
}

func summarize(res *models.CheckResult) CheckSummary {
	return CheckSummary{
		RunID:      res.RunID,
		Missing:    len(res.Missing),
		Unused:     len(res.Unused),
		Warnings:   len(res.Warnings),
		ErrorNotes: res.ErrorNotes,
	}
}

// encode renders an event in text/event-stream framing.
func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if event.ID != "" {
		buf.WriteString("id: " + event.ID + "\n")
	}
	buf.WriteString("event: " + event.Type + "\n")
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithKeepAlive sets how often idle streams receive a comment line so
// proxies keep the connection open. Zero disables keep-alives.
func WithKeepAlive(d time.Duration) BrokerOption {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker fans check results out to SSE clients.
//
// A single loop goroutine owns the client set, the throttle state and the
// last delivered check; public methods talk to it over channels.
type Broker struct {
	checkMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	checkCh       chan CheckSummary
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends at most one media.checked event
// per checkThrottle. Results arriving inside the window collapse into one
// trailing event carrying the latest of them.
func NewBroker(checkThrottle time.Duration, opts ...BrokerOption) *Broker {
	if checkThrottle <= 0 {
		checkThrottle = 2 * time.Second
	}

	b := &Broker{
		checkMin:      checkThrottle,
		keepAlive:     25 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		checkCh:       make(chan CheckSummary, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastSent  time.Time
		lastCheck []byte
		pending   *CheckSummary
		timer     *time.Timer
		flush     <-chan time.Time
	)

	send := func(ch chan []byte, msg []byte) {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}
	broadcast := func(event Event) []byte {
		msg, err := encode(event)
		if err != nil {
			return nil
		}
		for ch := range clients {
			send(ch, msg)
		}
		return msg
	}
	deliverCheck := func(s CheckSummary) {
		lastSent = time.Now()
		if msg := broadcast(Event{ID: s.RunID, Type: EventMediaChecked, Data: s}); msg != nil {
			lastCheck = msg
		}
	}

	for {
		select {
		case <-b.stopCh:
			if timer != nil {
				timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			// Late joiners see the most recent result straight away.
			if lastCheck != nil {
				send(ch, lastCheck)
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case s := <-b.checkCh:
			wait := b.checkMin - time.Since(lastSent)
			if wait <= 0 && pending == nil {
				deliverCheck(s)
				continue
			}
			pending = &s
			if flush == nil {
				timer = time.NewTimer(max(wait, 0))
				flush = timer.C
			}

		case <-flush:
			flush = nil
			if pending != nil {
				deliverCheck(*pending)
				pending = nil
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed when the broker stops.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts an event without throttling.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishCheck announces a finished media check, subject to throttling.
func (b *Broker) PublishCheck(res *models.CheckResult) {
	if b.closed.Load() || res == nil {
		return
	}
	select {
	case b.checkCh <- summarize(res):
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		ticker := time.NewTicker(b.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
