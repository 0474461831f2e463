package core

import (
	"sort"
	"sync"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

// Entry one observation of an exchange
type Entry struct {
	Exchange *libs.Exchange
	Phase    libs.Phase
}

// URLCount request count of a normalized URL
type URLCount struct {
	URL   string
	Count int
}

// Ledger append only store of captured exchanges
type Ledger struct {
	mu       sync.RWMutex
	entries  []Entry
	counts   map[string]int
	urlOrder []string
	sealed   bool
}

// NewLedger create an empty ledger
func NewLedger() *Ledger {
	return &Ledger{counts: make(map[string]int)}
}

// Append record an exchange observation, request phase bumps the URL counter
func (l *Ledger) Append(ex *libs.Exchange, phase libs.Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Exchange: ex, Phase: phase})
	if phase != libs.PhaseRequest {
		return
	}
	u := NormalizeURL(ex.Request.URL)
	if _, ok := l.counts[u]; !ok {
		l.urlOrder = append(l.urlOrder, u)
	}
	l.counts[u]++
}

// Seal mark the capture as quiesced
func (l *Ledger) Seal() {
	l.mu.Lock()
	l.sealed = true
	l.mu.Unlock()
}

// Sealed check if capture is over
func (l *Ledger) Sealed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sealed
}

// Len number of entries
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries snapshot of all entries in order
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// RankURLsByFrequency normalized URLs by request count, most frequent first
func (l *Ledger) RankURLsByFrequency() []URLCount {
	l.mu.RLock()
	ranked := make([]URLCount, 0, len(l.urlOrder))
	for _, u := range l.urlOrder {
		ranked = append(ranked, URLCount{URL: u, Count: l.counts[u]})
	}
	l.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

// GroupRequestsByURL request phase exchanges keyed by normalized URL
func (l *Ledger) GroupRequestsByURL() map[string][]*libs.Exchange {
	groups := make(map[string][]*libs.Exchange)
	l.ScanForward(func(e Entry) bool {
		if e.Phase == libs.PhaseRequest {
			u := NormalizeURL(e.Exchange.Request.URL)
			groups[u] = append(groups[u], e.Exchange)
		}
		return true
	})
	return groups
}

// ScanForward walk entries oldest first until fn returns false
func (l *Ledger) ScanForward(fn func(Entry) bool) {
	for _, e := range l.Entries() {
		if !fn(e) {
			return
		}
	}
}

// ScanBackward walk entries newest first until fn returns false
func (l *Ledger) ScanBackward(fn func(Entry) bool) {
	entries := l.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if !fn(entries[i]) {
			return
		}
	}
}
