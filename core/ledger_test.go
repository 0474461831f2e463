package core

import (
	"testing"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

// record append a full exchange, request observation then response observation
func record(l *Ledger, method string, url string, reqHeaders []map[string]string, reqBody string, resHeaders []map[string]string, resBody string) *libs.Exchange {
	req := libs.Request{Method: method, URL: url, Headers: reqHeaders}
	if reqBody != "" {
		req.Body = []byte(reqBody)
	}
	ex := &libs.Exchange{ID: url + method, Request: req}
	l.Append(ex, libs.PhaseRequest)
	res := &libs.Exchange{ID: ex.ID, Request: req, Response: libs.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Headers:    resHeaders,
		Body:       []byte(resBody),
	}}
	l.Append(res, libs.PhaseResponse)
	return res
}

func TestLedgerRank(t *testing.T) {
	l := NewLedger()
	record(l, "GET", "https://a.example.com/index", nil, "", nil, "")
	record(l, "GET", "https://a.example.com/poll?t=1", nil, "", nil, "")
	record(l, "GET", "https://a.example.com/poll?t=2", nil, "", nil, "")
	record(l, "GET", "https://a.example.com/other", nil, "", nil, "")

	ranked := l.RankURLsByFrequency()
	if len(ranked) != 3 {
		t.Fatalf("Error ranking urls: %v", ranked)
	}
	if ranked[0].URL != "https://a.example.com/poll" || ranked[0].Count != 2 {
		t.Errorf("Most frequent url should come first: %v", ranked)
	}
	// ties keep first seen order
	if ranked[1].URL != "https://a.example.com/index" || ranked[2].URL != "https://a.example.com/other" {
		t.Errorf("Error keeping tie order: %v", ranked)
	}

	groups := l.GroupRequestsByURL()
	if len(groups["https://a.example.com/poll"]) != 2 {
		t.Errorf("Error grouping requests: %v", groups)
	}
	if l.Len() != 8 {
		t.Errorf("Responses are entries too, got %v", l.Len())
	}
}

func TestLedgerScan(t *testing.T) {
	l := NewLedger()
	record(l, "GET", "https://a.example.com/1", nil, "", nil, "")
	record(l, "GET", "https://a.example.com/2", nil, "", nil, "")

	var forward, backward []string
	l.ScanForward(func(e Entry) bool {
		forward = append(forward, e.Exchange.Request.URL+string(e.Phase))
		return true
	})
	l.ScanBackward(func(e Entry) bool {
		backward = append(backward, e.Exchange.Request.URL+string(e.Phase))
		return len(backward) < 2
	})
	if len(forward) != 4 || forward[0] != "https://a.example.com/1request" {
		t.Errorf("Error scanning forward: %v", forward)
	}
	if len(backward) != 2 || backward[0] != "https://a.example.com/2response" {
		t.Errorf("Error scanning backward: %v", backward)
	}

	if l.Sealed() {
		t.Errorf("New ledger should not be sealed")
	}
	l.Seal()
	if !l.Sealed() {
		t.Errorf("Error sealing ledger")
	}
}
