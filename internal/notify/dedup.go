// Package notify filters and fans out inbound push notifications.
//
// The push transport delivers at least once, and a client holding more than
// one subscription sees the same notification several times within a few
// seconds. Deduplicator suppresses those repeats with two time windows; Hub
// reads raw messages from a Source, applies the deduplicator, and delivers
// what survives to every subscriber.
package notify

import (
	"crypto/sha256"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultKeyWindow suppresses a repeat of the same correlation key.
	DefaultKeyWindow = 5000 * time.Millisecond

	// DefaultContentWindow suppresses a repeat of the same content.
	DefaultContentWindow = 1000 * time.Millisecond
)

// Event is one inbound notification.
type Event struct {
	// CorrelationKey groups notifications about the same subject, e.g.
	// "routine-7". Empty when the message carries no subject.
	CorrelationKey string

	// Content is the user-visible text.
	Content string

	// ReceivedAt is the arrival time. Zero means "now" to ShouldDeliver.
	ReceivedAt time.Time
}

// record is the last delivered event. Only one is retained.
type record struct {
	key    string
	digest [sha256.Size]byte
	seenAt time.Time
}

// Deduplicator decides whether an event is a repeat of the last delivered one.
//
// It is a debounce, not an exactly-once filter: only the most recent delivery
// is remembered, and suppressed events never extend a window.
//
// Thread-safety: ShouldDeliver is safe for concurrent use.
type Deduplicator struct {
	mu            sync.Mutex
	keyWindow     time.Duration
	contentWindow time.Duration
	now           func() time.Time
	last          *record
}

// DedupOption configures a Deduplicator.
type DedupOption func(*Deduplicator)

// WithWindows overrides the key and content windows.
func WithWindows(key, content time.Duration) DedupOption {
	return func(d *Deduplicator) {
		d.keyWindow = key
		d.contentWindow = content
	}
}

// WithNow sets the time source used for events without ReceivedAt.
func WithNow(now func() time.Time) DedupOption {
	return func(d *Deduplicator) {
		d.now = now
	}
}

// NewDeduplicator creates a deduplicator with the default windows.
func NewDeduplicator(opts ...DedupOption) *Deduplicator {
	d := &Deduplicator{
		keyWindow:     DefaultKeyWindow,
		contentWindow: DefaultContentWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ShouldDeliver reports whether ev should reach subscribers.
//
// Rules, in order:
//   - same non-empty correlation key as the last delivery, less than the key
//     window ago: suppress
//   - same content (after Unicode NFC normalization) as the last delivery,
//     less than the content window ago: suppress
//   - otherwise ev becomes the last delivery and is delivered
func (d *Deduplicator) ShouldDeliver(ev Event) bool {
	at := ev.ReceivedAt
	if at.IsZero() {
		at = d.now()
	}
	digest := contentDigest(ev.Content)

	d.mu.Lock()
	defer d.mu.Unlock()

	if last := d.last; last != nil {
		elapsed := at.Sub(last.seenAt)
		if ev.CorrelationKey != "" && ev.CorrelationKey == last.key && elapsed < d.keyWindow {
			return false
		}
		if digest == last.digest && elapsed < d.contentWindow {
			return false
		}
	}

	d.last = &record{key: ev.CorrelationKey, digest: digest, seenAt: at}
	return true
}

// Reset forgets the last delivery.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = nil
}

func contentDigest(content string) [sha256.Size]byte {
	return sha256.Sum256([]byte(norm.NFC.String(content)))
}
