package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

func mintServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "S2", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: "csrf", Value: "T2", Path: "/"})
			fmt.Fprint(w, "<html></html>")
		case "/qr/status":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"state":"wait","qrid":"%v","cookie":"%v"}`, r.URL.Query().Get("qrid"), r.Header.Get("Cookie"))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFetchCookieHeader(t *testing.T) {
	srv := mintServer()
	defer srv.Close()

	options := libs.Options{Timeout: 2}
	if cookie := FetchCookieHeader(options, srv.URL+"/login"); cookie != "sid=S2; csrf=T2" {
		t.Errorf("Error collecting minted cookies: %v", cookie)
	}
	if cookie := FetchCookieHeader(options, srv.URL+"/qr/status"); cookie != "" {
		t.Errorf("No Set-Cookie should give an empty header: %v", cookie)
	}
	if cookie := FetchCookieHeader(options, ""); cookie != "" {
		t.Errorf("Empty target should give an empty header: %v", cookie)
	}
}

func TestFetchCookieHeaderClosed(t *testing.T) {
	srv := mintServer()
	target := srv.URL + "/login"
	srv.Close()

	if cookie := FetchCookieHeader(libs.Options{Timeout: 2}, target); cookie != "" {
		t.Errorf("Network failure should give an empty header: %v", cookie)
	}
}

func TestDirectChannelReplay(t *testing.T) {
	srv := mintServer()
	defer srv.Close()

	options := testOptions()
	options.Timeout = 2
	s := NewSession(options)
	s.SetChannel(NewDirectChannel(options, s))

	ex := &libs.Exchange{ID: "replay-1", Request: libs.Request{
		Method:  "GET",
		URL:     srv.URL + "/qr/status?qrid=k9Xq2LmP7vRu",
		Headers: []map[string]string{{"Cookie": "sid=S2"}, {"Host": "ignored.example.com"}},
	}}
	pending, err := s.Coordinator().Replay(ex)
	if err != nil {
		t.Fatalf("Error submitting replay: %v", err)
	}
	res, err := s.Coordinator().Await(context.Background(), pending)
	if err != nil {
		t.Fatalf("Error awaiting replay: %v", err)
	}
	if res.Response.StatusCode != 200 {
		t.Errorf("Error replaying: %v", res.Response.Status)
	}
	if string(res.Response.Body) != `{"state":"wait","qrid":"k9Xq2LmP7vRu","cookie":"sid=S2"}` {
		t.Errorf("Error reading replay response: %s", res.Response.Body)
	}
	if s.Ledger().Len() != 0 {
		t.Errorf("Replays must not be ledgered, got %v", s.Ledger().Len())
	}
}

func TestDirectChannelFailure(t *testing.T) {
	srv := mintServer()
	target := srv.URL + "/qr/status?qrid=k9Xq2LmP7vRu"
	srv.Close()

	options := testOptions()
	options.Timeout = 2
	options.ReplayTimeout = 30
	s := NewSession(options)
	s.SetChannel(NewDirectChannel(options, s))

	pending, err := s.Coordinator().Replay(&libs.Exchange{ID: "replay-2", Request: libs.Request{Method: "GET", URL: target}})
	if err != nil {
		t.Fatalf("Error submitting replay: %v", err)
	}
	start := time.Now()
	_, err = s.Coordinator().Await(context.Background(), pending)
	if !errors.Is(err, ErrReplayFailed) {
		t.Errorf("Send failure should fail the replay, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Failed replay should not wait for the replay timeout: %v", elapsed)
	}
	if s.Coordinator().IsPending("replay-2") {
		t.Errorf("Failed replay should be forgotten")
	}
}

func TestBeautify(t *testing.T) {
	req := libs.Request{
		Method:  "POST",
		URL:     "https://t.example.com/qr/create",
		Headers: []map[string]string{{"Content-Type": "application/x-www-form-urlencoded"}, {"X-Empty": ""}},
		Body:    []byte("sid=ABC123"),
	}
	want := "POST https://t.example.com/qr/create HTTP/1.1\nContent-Type: application/x-www-form-urlencoded\n\nsid=ABC123\n"
	if got := BeautifyRequest(req); got != want {
		t.Errorf("Error beautifying request:\n%q", got)
	}

	res := libs.Response{Status: "200 OK", Headers: []map[string]string{{"Content-Type": "application/json"}}, Body: []byte(`{"code":0}`)}
	want = "200 OK \nContent-Type: application/json\n\n{\"code\":0}\n"
	if got := BeautifyResponse(res); got != want {
		t.Errorf("Error beautifying response:\n%q", got)
	}
}
