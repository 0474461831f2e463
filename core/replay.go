package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/thoas/go-funk"
)

// DefaultReplayTimeout upper bound of a single replay wait
const DefaultReplayTimeout = 30 * time.Second

// ReplayChannel submits an exchange for replay, the response comes back through Deliver
type ReplayChannel interface {
	SubmitReplay(ex *libs.Exchange) error
}

// Pending a replay waiting for its response
type Pending struct {
	ID      string
	Request *libs.Exchange

	done     chan struct{}
	response *libs.Exchange
	err      error
}

// Coordinator issues replays and lets probes wait for them
type Coordinator struct {
	mu      sync.Mutex
	channel ReplayChannel
	timeout time.Duration
	pending map[string]*Pending
}

// NewCoordinator create a coordinator, zero timeout means DefaultReplayTimeout
func NewCoordinator(channel ReplayChannel, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultReplayTimeout
	}
	return &Coordinator{
		channel: channel,
		timeout: timeout,
		pending: make(map[string]*Pending),
	}
}

// SetChannel attach or swap the replay channel
func (c *Coordinator) SetChannel(channel ReplayChannel) {
	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()
}

// Replay submit an exchange, the pending handle is registered before submission
func (c *Coordinator) Replay(ex *libs.Exchange) (*Pending, error) {
	c.mu.Lock()
	channel := c.channel
	if channel == nil {
		c.mu.Unlock()
		return nil, ErrNoChannel
	}
	p := &Pending{ID: ex.ID, Request: ex, done: make(chan struct{})}
	c.pending[ex.ID] = p
	c.mu.Unlock()

	utils.DebugF("[REPLAY] submit %v %v", ex.Request.Method, ex.Request.URL)
	if err := channel.SubmitReplay(ex); err != nil {
		c.forget(ex.ID)
		return nil, err
	}
	return p, nil
}

// Await block until the replay response arrives, the timeout elapses or ctx is done
func (c *Coordinator) Await(ctx context.Context, p *Pending) (*libs.Exchange, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.response, p.err
	case <-timer.C:
		c.forget(p.ID)
		return nil, ErrReplayTimeout
	case <-ctx.Done():
		c.forget(p.ID)
		return nil, ctx.Err()
	}
}

// Deliver complete a pending replay, false when the exchange is not a replay
func (c *Coordinator) Deliver(ex *libs.Exchange) bool {
	c.mu.Lock()
	p, ok := c.pending[ex.ID]
	if ok {
		delete(c.pending, ex.ID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	utils.DebugF("[REPLAY] got response of %v %v: %v", ex.Request.Method, ex.Request.URL, ex.Response.StatusCode)
	p.response = ex
	close(p.done)
	return true
}

// Fail complete a pending replay with the error that kept it from being sent
func (c *Coordinator) Fail(id string, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.err = fmt.Errorf("%w: %v", ErrReplayFailed, err)
	close(p.done)
	return true
}

// IsPending check if an exchange ID waits for a replay response
func (c *Coordinator) IsPending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

func (c *Coordinator) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// CloneExchange independent copy of the request half with a fresh ID
func CloneExchange(ex *libs.Exchange) *libs.Exchange {
	clone := &libs.Exchange{}
	if err := copier.CopyWithOption(clone, ex, copier.Option{DeepCopy: true}); err != nil {
		utils.ErrorF("Error cloning exchange: %v", err)
	}
	clone.ID = uuid.NewString()
	clone.Response = libs.Response{}
	return clone
}

// SubstituteField replace a token value in body fields, URL and cookies of a request
func SubstituteField(ex *libs.Exchange, oldValue string, newValue string, fields ...string) *libs.Exchange {
	var names []string
	for _, f := range fields {
		if f != "" && f != MatchedNoName && f != LocatedNoValue {
			names = append(names, f)
		}
	}
	req := &ex.Request

	content := ParseBody(req.Headers, req.Body)
	if content.Fields.Len() > 0 && strings.Contains(content.Text, oldValue) {
		changed := false
		for _, key := range content.Fields.Keys() {
			if containsAny(key, names) {
				content.Fields.Set(key, newValue)
				changed = true
			}
		}
		contentType := strings.ToLower(libs.GetHeader(req.Headers, "Content-Type"))
		if changed {
			switch {
			case strings.Contains(contentType, "application/x-www-form-urlencoded"):
				req.Body = []byte(encodePairs(content.Fields))
			case strings.Contains(contentType, "application/json"):
				if data, err := content.Fields.MarshalJSON(); err == nil {
					req.Body = data
				}
			}
		}
	}

	escaped := strings.ReplaceAll(url.QueryEscape(newValue), "+", "%20")
	req.URL = strings.ReplaceAll(req.URL, oldValue, escaped)

	cookies := RequestCookies(ex)
	if len(cookies) > 0 {
		var parts []string
		for _, ck := range cookies {
			value := ck.Value
			if funk.ContainsString(names, ck.Name) && value == oldValue {
				value = newValue
			}
			parts = append(parts, ck.Name+"="+value)
		}
		req.Headers = libs.SetHeader(req.Headers, "Cookie", strings.Join(parts, "; "))
	}
	return ex
}

func containsAny(key string, names []string) bool {
	for _, n := range names {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}
