package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

// silentChannel accepts replays and never answers
type silentChannel struct {
	submitted []*libs.Exchange
}

func (s *silentChannel) SubmitReplay(ex *libs.Exchange) error {
	s.submitted = append(s.submitted, ex)
	return nil
}

// echoChannel answers every replay right away through the coordinator
type echoChannel struct {
	coordinator *Coordinator
	body        string
}

func (e *echoChannel) SubmitReplay(ex *libs.Exchange) error {
	res := *ex
	res.Response = libs.Response{StatusCode: 200, Status: "200 OK", Body: []byte(e.body)}
	e.coordinator.Deliver(&res)
	return nil
}

func TestSubstituteFieldForm(t *testing.T) {
	ex := &libs.Exchange{Request: libs.Request{
		Method:  "POST",
		URL:     "https://a.example.com/qr/status?qrid=ABC123",
		Headers: append(formHeaders(), map[string]string{"Cookie": "qrid=ABC123; sid=S1"}),
		Body:    []byte("qrid=ABC123&t=1"),
	}}
	SubstituteField(ex, "ABC123", "ABC223", "qrid")

	if ex.Request.URL != "https://a.example.com/qr/status?qrid=ABC223" {
		t.Errorf("Error substituting url: %v", ex.Request.URL)
	}
	if string(ex.Request.Body) != "qrid=ABC223&t=1" {
		t.Errorf("Error substituting form body: %s", ex.Request.Body)
	}
	if cookie := libs.GetHeader(ex.Request.Headers, "Cookie"); cookie != "qrid=ABC223; sid=S1" {
		t.Errorf("Error substituting cookie: %v", cookie)
	}
}

func TestSubstituteFieldJSON(t *testing.T) {
	ex := &libs.Exchange{Request: libs.Request{
		Method:  "POST",
		URL:     "https://a.example.com/qr/create",
		Headers: jsonHeaders(),
		Body:    []byte(`{"qrId":"ABC123","type":"web"}`),
	}}
	SubstituteField(ex, "ABC123", "ABC223", "qrId", MatchedNoName)

	content := ParseBody(ex.Request.Headers, ex.Request.Body)
	v, _ := content.Fields.Get("qrId")
	if Stringify(v) != "ABC223" {
		t.Errorf("Error substituting json body: %s", ex.Request.Body)
	}
	v, _ = content.Fields.Get("type")
	if Stringify(v) != "web" {
		t.Errorf("Other fields should be kept: %s", ex.Request.Body)
	}
}

func TestSubstituteFieldEscape(t *testing.T) {
	ex := &libs.Exchange{Request: libs.Request{Method: "GET", URL: "https://a.example.com/poll/ABC123"}}
	SubstituteField(ex, "ABC123", "a b/c")
	if ex.Request.URL != "https://a.example.com/poll/a%20b%2Fc" {
		t.Errorf("Error escaping new value: %v", ex.Request.URL)
	}
}

func TestCloneExchange(t *testing.T) {
	ex := &libs.Exchange{
		ID:       "origin",
		Request:  libs.Request{Method: "GET", URL: "https://a.example.com/", Headers: []map[string]string{{"A": "1"}}},
		Response: libs.Response{StatusCode: 200},
	}
	clone := CloneExchange(ex)
	if clone.ID == "" || clone.ID == ex.ID {
		t.Errorf("Clone should get a fresh id: %v", clone.ID)
	}
	if clone.Response.StatusCode != 0 {
		t.Errorf("Clone should not carry the response")
	}
	if libs.GetHeader(clone.Request.Headers, "A") != "1" || clone.Request.URL != ex.Request.URL {
		t.Errorf("Clone should keep the request: %v", clone.Request)
	}
}

func TestCoordinatorDeliver(t *testing.T) {
	c := NewCoordinator(nil, time.Second)
	c.SetChannel(&echoChannel{coordinator: c, body: `{"state":"login"}`})

	ex := CloneExchange(&libs.Exchange{Request: libs.Request{Method: "GET", URL: "https://a.example.com/poll"}})
	pending, err := c.Replay(ex)
	if err != nil {
		t.Fatalf("Error replaying: %v", err)
	}
	res, err := c.Await(context.Background(), pending)
	if err != nil {
		t.Fatalf("Error waiting replay: %v", err)
	}
	if !strings.Contains(string(res.Response.Body), "login") {
		t.Errorf("Error delivering response: %s", res.Response.Body)
	}
	if c.IsPending(ex.ID) {
		t.Errorf("Delivered replay should not be pending")
	}
	if c.Deliver(ex) {
		t.Errorf("Second delivery should be ignored")
	}
}

func TestCoordinatorTimeout(t *testing.T) {
	channel := &silentChannel{}
	c := NewCoordinator(channel, 50*time.Millisecond)
	ex := CloneExchange(&libs.Exchange{Request: libs.Request{Method: "GET", URL: "https://a.example.com/poll"}})
	pending, err := c.Replay(ex)
	if err != nil {
		t.Fatalf("Error replaying: %v", err)
	}
	if !c.IsPending(ex.ID) {
		t.Errorf("Replay should be pending before the response")
	}
	if _, err := c.Await(context.Background(), pending); !errors.Is(err, ErrReplayTimeout) {
		t.Errorf("Expect timeout, got %v", err)
	}
	if c.IsPending(ex.ID) {
		t.Errorf("Timed out replay should be forgotten")
	}
	if len(channel.submitted) != 1 {
		t.Errorf("Error submitting replay: %v", len(channel.submitted))
	}
}

func TestCoordinatorCancel(t *testing.T) {
	c := NewCoordinator(&silentChannel{}, time.Minute)
	ex := CloneExchange(&libs.Exchange{Request: libs.Request{Method: "GET", URL: "https://a.example.com/poll"}})
	pending, _ := c.Replay(ex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Await(ctx, pending); !errors.Is(err, context.Canceled) {
		t.Errorf("Expect canceled, got %v", err)
	}
}

func TestCoordinatorNoChannel(t *testing.T) {
	c := NewCoordinator(nil, 0)
	if _, err := c.Replay(&libs.Exchange{ID: "x"}); !errors.Is(err, ErrNoChannel) {
		t.Errorf("Expect no channel error, got %v", err)
	}
}
