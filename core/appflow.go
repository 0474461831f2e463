package core

import (
	"sync"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

// AppFlowSet traffic coming from the mobile app, kept apart from the browser
type AppFlowSet struct {
	mu            sync.RWMutex
	entries       []Entry
	loginRequests []Entry
}

// Add record an app exchange observation
func (a *AppFlowSet) Add(ex *libs.Exchange, phase libs.Phase) {
	a.mu.Lock()
	a.entries = append(a.entries, Entry{Exchange: ex, Phase: phase})
	a.mu.Unlock()
}

// Entries snapshot in order
func (a *AppFlowSet) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Entry(nil), a.entries...)
}

// AddLoginRequest mark an entry as the app side authorization
func (a *AppFlowSet) AddLoginRequest(e Entry) {
	a.mu.Lock()
	a.loginRequests = append(a.loginRequests, e)
	a.mu.Unlock()
}

// LoginRequests derived login request subset
func (a *AppFlowSet) LoginRequests() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Entry(nil), a.loginRequests...)
}
