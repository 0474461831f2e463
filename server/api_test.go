package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, noAuth bool) (*Server, *gin.Engine, func()) {
	gin.SetMode(gin.TestMode)
	dir, err := ioutil.TempDir("", "qrlchecker-server")
	require.NoError(t, err)

	var options libs.Options
	options.Output = dir
	options.NoDB = true
	options.NoOutput = true
	options.Refresh = 1
	options.ReplayTimeout = 2
	options.Server.NoAuth = noAuth
	options.Server.Username = "qrlchecker"
	options.Server.Password = "secret-pass"
	options.Server.JWTSecret = "jwt-secret"
	options.Target.QRPayload = "https://t.example.com/scan?sid=ABC123"

	s := NewServer(options)
	r, err := s.InitRouter()
	require.NoError(t, err)
	return s, r, func() { os.RemoveAll(dir) }
}

func doJSON(r http.Handler, method string, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		data, _ := jsoniter.Marshal(body)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestPing(t *testing.T) {
	_, r, cleanup := testServer(t, true)
	defer cleanup()

	w := doJSON(r, "GET", "/api/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")

	w = doJSON(r, "GET", "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCaptureEndpoints(t *testing.T) {
	s, r, cleanup := testServer(t, true)
	defer cleanup()

	msg := CaptureMessage{
		ID:      "ex-1",
		Request: Message{Method: "get", URL: "https://t.example.com/status?sid=ABC123"},
	}
	w := doJSON(r, "POST", "/api/request", msg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	msg.Response = &Message{
		StatusCode: 200,
		Headers:    []map[string]string{{"Content-Type": "application/json"}},
		Body:       b64(`{"state":"wait"}`),
	}
	w = doJSON(r, "POST", "/api/response", msg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	raw := "POST /qr/create HTTP/1.1\r\nHost: t.example.com\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nsid=ABC123"
	w = doJSON(r, "POST", "/api/request", CaptureMessage{Request: Message{Raw: b64(raw)}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries := s.Session().Ledger().Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "GET", entries[0].Exchange.Request.Method)
	assert.Equal(t, libs.PhaseResponse, entries[1].Phase)
	assert.Equal(t, `{"state":"wait"}`, string(entries[1].Exchange.Response.Body))
	assert.Equal(t, "200 OK", entries[1].Exchange.Response.Status)
	assert.Equal(t, "https://t.example.com/qr/create", entries[2].Exchange.Request.URL)
	assert.Equal(t, "sid=ABC123", string(entries[2].Exchange.Request.Body))

	// response endpoint needs a response
	w = doJSON(r, "POST", "/api/response", CaptureMessage{Request: Message{Method: "GET", URL: "https://t.example.com/"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, "POST", "/api/request", CaptureMessage{Request: Message{Method: "GET"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, "POST", "/api/request", CaptureMessage{Request: Message{Method: "GET", URL: "https://t.example.com/", Body: "%%%"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDoneAndVerdict(t *testing.T) {
	s, r, cleanup := testServer(t, true)
	defer cleanup()

	w := doJSON(r, "GET", "/api/verdict", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(r, "POST", "/api/done", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)

	assert.Eventually(t, func() bool {
		_, ok := s.Verdict()
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	w = doJSON(r, "GET", "/api/verdict", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results"`)
	assert.True(t, s.Session().Ledger().Sealed())
}

func TestAuth(t *testing.T) {
	_, r, cleanup := testServer(t, false)
	defer cleanup()

	w := doJSON(r, "GET", "/api/ping", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "POST", "/auth/login", map[string]string{"username": "qrlchecker", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, "POST", "/auth/login", map[string]string{"username": "qrlchecker", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := jsoniter.Get(w.Body.Bytes(), "token").ToString()
	require.NotEmpty(t, token)

	w = doJSON(r, "GET", "/api/ping", nil, "Authorization", "QRLChecker "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthEmptySecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var options libs.Options
	options.Output = t.TempDir()
	options.NoDB = true
	options.Server.Username = "qrlchecker"
	options.Server.Password = "secret-pass"
	r, err := NewServer(options).InitRouter()
	assert.ErrorIs(t, err, ErrEmptySecret)
	assert.Nil(t, r, "no router is served without auth")

	// auth disabled needs no secret
	options.Server.NoAuth = true
	_, err = NewServer(options).InitRouter()
	assert.NoError(t, err)
}

func TestHubReplay(t *testing.T) {
	s, r, cleanup := testServer(t, true)
	defer cleanup()
	srv := httptest.NewServer(r)
	defer srv.Close()

	ex := &libs.Exchange{ID: "replay-1", Request: libs.Request{Method: "GET", URL: "https://t.example.com/status?sid=ABC223"}}
	_, err := s.Session().Coordinator().Replay(ex)
	assert.ErrorIs(t, err, ErrNoClient)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, 2*time.Second, 20*time.Millisecond)

	pending, err := s.Session().Coordinator().Replay(ex)
	require.NoError(t, err)

	var replay ReplayMessage
	require.NoError(t, conn.ReadJSON(&replay))
	assert.Equal(t, "replay", replay.Type)
	assert.Equal(t, "replay-1", replay.ID)
	assert.Equal(t, ex.Request.URL, replay.URL)

	require.NoError(t, conn.WriteJSON(CaptureMessage{
		Type:     "response",
		ID:       replay.ID,
		Request:  Message{Method: replay.Method, URL: replay.URL},
		Response: &Message{StatusCode: 200, Body: b64(`{"state":"wait"}`)},
	}))

	res, err := s.Session().Coordinator().Await(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, `{"state":"wait"}`, string(res.Response.Body))
	assert.Equal(t, 0, s.Session().Ledger().Len(), "replay responses are not captured")

	conn.Close()
	assert.Eventually(t, func() bool { return s.Hub().Clients() == 0 }, 2*time.Second, 20*time.Millisecond)
}
