package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Message one half of an HTTP exchange as sent by the proxy addon.
// Raw is a base64 burp style message and wins over the other fields,
// Body is base64 encoded.
type Message struct {
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	StatusCode int                 `json:"status_code"`
	Status     string              `json:"status"`
	Headers    []map[string]string `json:"headers"`
	Body       string              `json:"body"`
	Raw        string              `json:"raw"`
}

// CaptureMessage a captured request, or a response together with its request
type CaptureMessage struct {
	Type     string   `json:"type"`
	ID       string   `json:"id"`
	Request  Message  `json:"request"`
	Response *Message `json:"response"`
}

// Exchange convert to an exchange and its phase
func (m CaptureMessage) Exchange() (*libs.Exchange, libs.Phase, error) {
	ex := &libs.Exchange{ID: m.ID}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	req, err := m.Request.request()
	if err != nil {
		return nil, "", err
	}
	ex.Request = req
	if m.Response == nil {
		return ex, libs.PhaseRequest, nil
	}
	res, err := m.Response.response(req.Method)
	if err != nil {
		return nil, "", err
	}
	ex.Response = res
	return ex, libs.PhaseResponse, nil
}

func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func (m Message) request() (libs.Request, error) {
	if m.Raw != "" {
		raw, err := decodeB64(m.Raw)
		if err != nil {
			return libs.Request{}, fmt.Errorf("decode raw request: %w", err)
		}
		return core.ParseBurpRequest(string(raw))
	}
	if m.Method == "" || m.URL == "" {
		return libs.Request{}, fmt.Errorf("request needs method and url")
	}
	body, err := decodeB64(m.Body)
	if err != nil {
		return libs.Request{}, fmt.Errorf("decode request body: %w", err)
	}
	return libs.Request{Method: strings.ToUpper(m.Method), URL: m.URL, Headers: m.Headers, Body: body}, nil
}

func (m Message) response(method string) (libs.Response, error) {
	if m.Raw != "" {
		raw, err := decodeB64(m.Raw)
		if err != nil {
			return libs.Response{}, fmt.Errorf("decode raw response: %w", err)
		}
		return core.ParseBurpResponse(string(raw), method)
	}
	body, err := decodeB64(m.Body)
	if err != nil {
		return libs.Response{}, fmt.Errorf("decode response body: %w", err)
	}
	status := m.Status
	if status == "" {
		status = fmt.Sprintf("%d %v", m.StatusCode, http.StatusText(m.StatusCode))
	}
	return libs.Response{StatusCode: m.StatusCode, Status: status, Headers: m.Headers, Body: body}, nil
}

func bindCapture(c *gin.Context) (*libs.Exchange, libs.Phase, bool) {
	var msg CaptureMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return nil, "", false
	}
	ex, phase, err := msg.Exchange()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return nil, "", false
	}
	return ex, phase, true
}

// Ping testing authenticated connection
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "200", "message": "pong"})
}

// ReceiveRequest interception callback for requests
func (s *Server) ReceiveRequest(c *gin.Context) {
	ex, _, ok := bindCapture(c)
	if !ok {
		return
	}
	s.session.OnRequest(ex)
	c.JSON(http.StatusOK, gin.H{"status": "200", "message": "captured", "id": ex.ID})
}

// ReceiveResponse interception callback for responses, replays included
func (s *Server) ReceiveResponse(c *gin.Context) {
	ex, phase, ok := bindCapture(c)
	if !ok {
		return
	}
	if phase != libs.PhaseResponse {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing response"})
		return
	}
	s.session.OnResponse(ex)
	c.JSON(http.StatusOK, gin.H{"status": "200", "message": "captured", "id": ex.ID})
}

// Done completion signal of the login flow
func (s *Server) Done(c *gin.Context) {
	s.signal.Set()
	utils.InforF("[api] login flow marked done")
	c.JSON(http.StatusOK, gin.H{"status": "200", "message": "analysis started"})
}

// GetVerdict verdict of the live session
func (s *Server) GetVerdict(c *gin.Context) {
	verdict, ok := s.Verdict()
	if !ok {
		c.JSON(http.StatusAccepted, gin.H{"status": "pending", "message": "detection not finished"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "200", "verdict": verdict})
}

// ListVerdicts stored verdicts
func ListVerdicts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "200", "verdicts": database.GetVerdicts()})
}

// GetStoredVerdict a stored verdict by scan id
func GetStoredVerdict(c *gin.Context) {
	verdict, err := database.GetVerdict(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "404", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "200", "verdict": verdict, "flaws": database.GetFlaws(c.Param("sid"))})
}
