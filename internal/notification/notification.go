package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindTransferReceived is sent to the recipient of a wallet-to-wallet transfer.
	KindTransferReceived = "transfer_received"
	// KindWalletFunded is sent when tokens are issued to a wallet.
	KindWalletFunded = "wallet_funded"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Recorder keeps every message in memory. Used by tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of what was sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

type pendingKey struct{}

// Pending holds deliveries until the surrounding unit of work commits.
type Pending struct {
	mu    sync.Mutex
	sends []func(context.Context)
}

// Defer returns a context under which Hold queues deliveries on the returned
// Pending instead of running them.
func Defer(ctx context.Context) (context.Context, *Pending) {
	p := &Pending{}
	return context.WithValue(ctx, pendingKey{}, p), p
}

// Hold queues send when ctx carries a Pending and reports whether it did.
func Hold(ctx context.Context, send func(context.Context)) bool {
	p, ok := ctx.Value(pendingKey{}).(*Pending)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, send)
	return true
}

// Flush runs the queued deliveries in order and empties the queue.
func (p *Pending) Flush(ctx context.Context) {
	p.mu.Lock()
	sends := p.sends
	p.sends = nil
	p.mu.Unlock()
	for _, send := range sends {
		send(ctx)
	}
}

// Len reports how many deliveries are queued.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}
