package core

import (
	"fmt"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

// BindingState state of the polling/token binding
type BindingState int

const (
	Unresolved BindingState = iota
	Candidate
	Bound
	Rejected
)

func (s BindingState) String() string {
	switch s {
	case Candidate:
		return "candidate"
	case Bound:
		return "bound"
	case Rejected:
		return "rejected"
	}
	return "unresolved"
}

// TokenCandidate a field/value pair believed to carry the QR id
type TokenCandidate struct {
	Field string
	Value string
}

// CreationBinding where the token first appeared
type CreationBinding struct {
	Exchange *libs.Exchange
	Phase    libs.Phase
}

// RoleBindings correlation state produced by one prepare pass
type RoleBindings struct {
	State BindingState

	PollingURL      string
	PollingExchange *libs.Exchange
	tokens          []TokenCandidate

	TokenFieldAtCreation string
	TokenFieldAtPoll     string
	Creation             *CreationBinding
	CreationReplay       *libs.Exchange
	CookieSourceURL      string

	NewToken             *TokenCandidate
	LoginSuccessResponse *libs.Exchange

	// polling URLs that failed cross-validation
	Rejections []string
}

// AddToken record a matched token candidate, a known field is overwritten in place
func (b *RoleBindings) AddToken(field string, value string) {
	for i, t := range b.tokens {
		if t.Field == field {
			b.tokens[i].Value = value
			return
		}
	}
	b.tokens = append(b.tokens, TokenCandidate{Field: field, Value: value})
	if b.State == Unresolved {
		b.State = Candidate
	}
}

// Tokens current candidates in match order
func (b *RoleBindings) Tokens() []TokenCandidate {
	return append([]TokenCandidate(nil), b.tokens...)
}

// KeepToken reduce the candidates to a single one
func (b *RoleBindings) KeepToken(t TokenCandidate) {
	b.tokens = []TokenCandidate{t}
}

// Token the resolved token, first candidate wins
func (b *RoleBindings) Token() (TokenCandidate, bool) {
	if len(b.tokens) == 0 {
		return TokenCandidate{}, false
	}
	return b.tokens[0], true
}

// TokenValue value of the resolved token or empty
func (b *RoleBindings) TokenValue() string {
	t, _ := b.Token()
	return t.Value
}

// Bind promote the polling exchange, requires a token candidate
func (b *RoleBindings) Bind(ex *libs.Exchange) error {
	if len(b.tokens) == 0 {
		return fmt.Errorf("bind %v: %w", ex.Request.URL, ErrNotReady)
	}
	b.PollingExchange = ex
	b.PollingURL = ex.Request.URL
	b.State = Bound
	return nil
}

// Reject the polling binding, polling and tokens are cleared together
// and the binding goes back to unresolved
func (b *RoleBindings) Reject() {
	if b.PollingURL != "" {
		b.Rejections = append(b.Rejections, b.PollingURL)
	}
	b.PollingExchange = nil
	b.PollingURL = ""
	b.TokenFieldAtPoll = ""
	b.tokens = nil
	b.State = Unresolved
}

// Settle close the correlation pass, an unbound state after rejections is final
func (b *RoleBindings) Settle() {
	if b.State != Bound && len(b.Rejections) > 0 {
		b.State = Rejected
	}
}

// Ready polling, token and creation are all resolved
func (b *RoleBindings) Ready() bool {
	return b.PollingExchange != nil && len(b.tokens) > 0 && b.Creation != nil
}
