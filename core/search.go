package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/libs"
)

const (
	// MatchedNoName keyword found in the URL but not in a named parameter
	MatchedNoName = "noName"
	// LocatedNoValue field name found in the URL but not as a query key
	LocatedNoValue = "noValue"
)

// Search keyword in one side of an exchange, return the field name holding it
func Search(ex *libs.Exchange, phase libs.Phase, keyword string) string {
	if ex == nil || keyword == "" {
		return ""
	}
	if phase == libs.PhaseRequest {
		return searchRequest(ex, keyword)
	}
	return searchResponse(ex, keyword)
}

func searchRequest(ex *libs.Exchange, keyword string) string {
	req := ex.Request
	for _, p := range queryPairs(req.URL) {
		if p.Value == keyword {
			return p.Key
		}
	}
	if strings.Contains(req.URL, keyword) {
		return MatchedNoName
	}

	if len(req.Body) > 0 {
		fields := Flatten(ParseBody(req.Headers, req.Body).Fields)
		found := ""
		fields.Each(func(k string, v interface{}) bool {
			s := Stringify(v)
			if strings.Contains(s, keyword) || strings.Contains(unquote(s), keyword) {
				found = k
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	for _, header := range req.Headers {
		for k, v := range header {
			if isCookieHeader(k) {
				continue
			}
			if strings.Contains(v, keyword) {
				return k
			}
		}
	}

	for _, c := range RequestCookies(ex) {
		if c.Value == keyword {
			return c.Name
		}
	}
	return ""
}

func searchResponse(ex *libs.Exchange, keyword string) string {
	res := ex.Response
	if len(res.Body) > 0 {
		fields := Flatten(ParseBody(res.Headers, res.Body).Fields)
		found := ""
		fields.Each(func(k string, v interface{}) bool {
			s := Stringify(v)
			if s == keyword || unquote(s) == keyword {
				found = k
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
		fields.Each(func(k string, v interface{}) bool {
			s := Stringify(v)
			if strings.Contains(s, keyword) || strings.Contains(unquote(s), keyword) {
				found = k
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	for _, header := range res.Headers {
		for k, v := range header {
			if v == keyword {
				return k
			}
		}
	}
	for _, header := range res.Headers {
		for k, v := range header {
			if !strings.Contains(v, keyword) {
				continue
			}
			for _, c := range ResponseCookies(ex) {
				if c.Value == keyword {
					return c.Name
				}
			}
			return k
		}
	}
	return ""
}

// LocateValue find the value of a named field, inverse of Search
func LocateValue(ex *libs.Exchange, phase libs.Phase, field string) string {
	if ex == nil || field == "" {
		return ""
	}
	if phase == libs.PhaseRequest {
		return locateInRequest(ex, field)
	}
	return locateInResponse(ex, field)
}

func locateInRequest(ex *libs.Exchange, field string) string {
	req := ex.Request
	for _, p := range queryPairs(req.URL) {
		if p.Key == field {
			return p.Value
		}
	}
	if strings.Contains(req.URL, field) {
		return LocatedNoValue
	}

	if len(req.Body) > 0 {
		fields := Flatten(ParseBody(req.Headers, req.Body).Fields)
		if v, ok := fields.Get(field); ok {
			return Stringify(v)
		}
	}

	for _, header := range req.Headers {
		for k, v := range header {
			if isCookieHeader(k) {
				continue
			}
			if k == field {
				return v
			}
		}
	}

	for _, c := range RequestCookies(ex) {
		if c.Name == field {
			return c.Value
		}
	}
	return ""
}

func locateInResponse(ex *libs.Exchange, field string) string {
	res := ex.Response
	if len(res.Body) > 0 {
		fields := Flatten(ParseBody(res.Headers, res.Body).Fields)
		found, ok := "", false
		fields.Each(func(k string, v interface{}) bool {
			if k == field || unquote(k) == field {
				found, ok = Stringify(v), true
				return false
			}
			return true
		})
		if ok {
			return found
		}
	}

	for _, header := range res.Headers {
		for k, v := range header {
			if k == field {
				return v
			}
		}
	}
	for _, header := range res.Headers {
		for _, v := range header {
			if !strings.Contains(v, field) {
				continue
			}
			for _, c := range ResponseCookies(ex) {
				if c.Name == field {
					return c.Value
				}
			}
			return v
		}
	}
	return ""
}

// RequestCookies cookies sent with the request, in order
func RequestCookies(ex *libs.Exchange) []*http.Cookie {
	h := http.Header{}
	for _, header := range ex.Request.Headers {
		for k, v := range header {
			if strings.EqualFold(k, "Cookie") {
				h.Add("Cookie", v)
			}
		}
	}
	r := http.Request{Header: h}
	return r.Cookies()
}

// ResponseCookies cookies set by the response, in order
func ResponseCookies(ex *libs.Exchange) []*http.Cookie {
	h := http.Header{}
	for _, header := range ex.Response.Headers {
		for k, v := range header {
			if strings.EqualFold(k, "Set-Cookie") {
				h.Add("Set-Cookie", v)
			}
		}
	}
	r := http.Response{Header: h}
	return r.Cookies()
}

// HeadersText all headers as one block of text
func HeadersText(headers []map[string]string) string {
	var b strings.Builder
	for _, header := range headers {
		for k, v := range header {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// NormalizeURL strip query string and fragment
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	return u.Scheme + "://" + u.Host + u.Path
}

func queryPairs(raw string) []pair {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return parsePairs(u.RawQuery, true)
}

func isCookieHeader(name string) bool {
	return strings.EqualFold(name, "cookie") || strings.EqualFold(name, "set-cookie")
}
