package core

import (
	"testing"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

func TestSearchRequest(t *testing.T) {
	ex := &libs.Exchange{Request: libs.Request{
		Method: "GET",
		URL:    "https://passport.example.com/qr/status?qrid=k9Xq2LmP7vRt&_=1700000000000",
	}}
	if field := Search(ex, libs.PhaseRequest, "k9Xq2LmP7vRt"); field != "qrid" {
		t.Errorf("Error searching query, got %v", field)
	}
	if value := LocateValue(ex, libs.PhaseRequest, "qrid"); value != "k9Xq2LmP7vRt" {
		t.Errorf("Error locating query, got %v", value)
	}
	if field := Search(ex, libs.PhaseRequest, "passport"); field != MatchedNoName {
		t.Errorf("Keyword in the URL path should be noName, got %v", field)
	}
	if value := LocateValue(ex, libs.PhaseRequest, "status"); value != LocatedNoValue {
		t.Errorf("Field in the URL path should be noValue, got %v", value)
	}
	if field := Search(ex, libs.PhaseRequest, "missing"); field != "" {
		t.Errorf("Missing keyword should return empty, got %v", field)
	}
}

func TestSearchRequestBodyAndCookie(t *testing.T) {
	ex := &libs.Exchange{Request: libs.Request{
		Method: "POST",
		URL:    "https://passport.example.com/api/check",
		Headers: []map[string]string{
			{"Content-Type": "application/json"},
			{"Cookie": "sid=S1; ticket=T42"},
		},
		Body: []byte(`{"data":{"uuid":"5f1c9e0a"}}`),
	}}
	if field := Search(ex, libs.PhaseRequest, "5f1c9e0a"); field != "uuid" {
		t.Errorf("Error searching body, got %v", field)
	}
	if value := LocateValue(ex, libs.PhaseRequest, "uuid"); value != "5f1c9e0a" {
		t.Errorf("Error locating body, got %v", value)
	}
	if field := Search(ex, libs.PhaseRequest, "T42"); field != "ticket" {
		t.Errorf("Error searching cookie, got %v", field)
	}
	if value := LocateValue(ex, libs.PhaseRequest, "ticket"); value != "T42" {
		t.Errorf("Error locating cookie, got %v", value)
	}
}

func TestSearchResponse(t *testing.T) {
	ex := &libs.Exchange{
		Request: libs.Request{Method: "GET", URL: "https://passport.example.com/qr/create"},
		Response: libs.Response{
			StatusCode: 200,
			Headers: []map[string]string{
				{"Content-Type": "application/json"},
				{"Set-Cookie": "qrsig=Q5abc; Path=/; HttpOnly"},
				{"X-Request-Id": "r-1"},
			},
			Body: []byte(`{"code":0,"data":{"qrcode":"https://m.example.com/l?k=abcd1234","key":"abcd1234"}}`),
		},
	}
	// exact match wins over substring match
	if field := Search(ex, libs.PhaseResponse, "abcd1234"); field != "key" {
		t.Errorf("Error searching body, got %v", field)
	}
	if value := LocateValue(ex, libs.PhaseResponse, "key"); value != "abcd1234" {
		t.Errorf("Error locating body, got %v", value)
	}
	if field := Search(ex, libs.PhaseResponse, "Q5abc"); field != "qrsig" {
		t.Errorf("Error searching set-cookie, got %v", field)
	}
	if value := LocateValue(ex, libs.PhaseResponse, "qrsig"); value != "Q5abc" {
		t.Errorf("Error locating set-cookie, got %v", value)
	}
	if field := Search(ex, libs.PhaseResponse, "r-1"); field != "X-Request-Id" {
		t.Errorf("Error searching header, got %v", field)
	}
}

func TestSearchLocateInverse(t *testing.T) {
	ex := &libs.Exchange{Request: libs.Request{
		Method:  "POST",
		URL:     "https://passport.example.com/api/poll?lang=en",
		Headers: formHeaders(),
		Body:    []byte("qr_token=Zx81Lq0pA&client=web"),
	}}
	for _, keyword := range []string{"Zx81Lq0pA", "web", "en"} {
		field := Search(ex, libs.PhaseRequest, keyword)
		if field == "" || field == MatchedNoName {
			t.Errorf("Error searching %v", keyword)
			continue
		}
		if value := LocateValue(ex, libs.PhaseRequest, field); value != keyword {
			t.Errorf("LocateValue(Search(%v)) = %v", keyword, value)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	if u := NormalizeURL("https://a.example.com/qr/status?qrid=1#top"); u != "https://a.example.com/qr/status" {
		t.Errorf("Error normalize url: %v", u)
	}
}
