package core

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/google/uuid"
)

// ParseBurpRequest parse burp style request
func ParseBurpRequest(raw string) (libs.Request, error) {
	var realReq libs.Request
	raw = normalizeRaw(raw)
	reader := bufio.NewReader(strings.NewReader(raw))
	parsedReq, err := http.ReadRequest(reader)
	if err != nil {
		return realReq, fmt.Errorf("parse raw request: %w", err)
	}
	realReq.Method = parsedReq.Method
	// URL part
	if parsedReq.URL.Host == "" {
		parsedReq.URL.Host = parsedReq.Host
	}
	if parsedReq.URL.Scheme == "" {
		parsedReq.URL.Scheme = "https"
		if parsedReq.Referer() != "" {
			u, err := url.Parse(parsedReq.Referer())
			if err == nil && u.Scheme != "" {
				parsedReq.URL.Scheme = u.Scheme
			}
		}
	}
	realReq.URL = parsedReq.URL.String()
	realReq.Headers = ParseHeaders(raw)
	realReq.Body = rawBody(raw)
	return realReq, nil
}

// ParseBurpResponse parse burp style response
func ParseBurpResponse(rawRes string, method string) (libs.Response, error) {
	var res libs.Response
	rawRes = normalizeRaw(rawRes)
	reader := bufio.NewReader(strings.NewReader(rawRes))
	parsedRes, err := http.ReadResponse(reader, &http.Request{Method: method})
	if err != nil {
		return res, fmt.Errorf("parse raw response: %w", err)
	}

	res.Status = parsedRes.Status
	res.StatusCode = parsedRes.StatusCode
	res.Headers = ParseHeaders(rawRes)
	res.Body = rawBody(rawRes)
	return res, nil
}

// ParseHeaders ordered headers of a raw request or response
func ParseHeaders(raw string) []map[string]string {
	var headers []map[string]string
	raw = normalizeRaw(raw)
	head := raw
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		head = raw[:i]
	}
	lines := strings.Split(head, "\r\n")
	for _, line := range lines[1:] {
		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		headers = append(headers, map[string]string{name: value})
	}
	return headers
}

// rawBody bytes after the head, Content-Length is not trusted since raw
// captures are often edited by hand
func rawBody(raw string) []byte {
	i := strings.Index(raw, "\r\n\r\n")
	if i < 0 || i+4 >= len(raw) {
		return nil
	}
	return []byte(raw[i+4:])
}

// normalizeRaw use CRLF line endings in the head, the body is left alone
func normalizeRaw(raw string) string {
	raw = strings.TrimLeft(raw, "\r\n")
	if strings.Contains(raw, "\r\n\r\n") {
		return raw
	}
	head, body := raw, ""
	if i := strings.Index(raw, "\n\n"); i >= 0 {
		head, body = raw[:i], raw[i+2:]
	}
	head = strings.ReplaceAll(strings.ReplaceAll(head, "\r\n", "\n"), "\n", "\r\n")
	return head + "\r\n\r\n" + body
}

// rawMarker separates sections of a raw capture file
const rawMarker = "### "

// ParseRawCapture parse a raw capture file.
// Each section starts with a "### request" or "### response" line, a
// response belongs to the request right before it.
func ParseRawCapture(content string) ([]Observation, error) {
	var observations []Observation
	var current *libs.Exchange

	sections := splitSections(content)
	for i, s := range sections {
		switch s.kind {
		case "request":
			req, err := ParseBurpRequest(s.body)
			if err != nil {
				return observations, fmt.Errorf("section %d: %w", i+1, err)
			}
			current = &libs.Exchange{ID: uuid.NewString(), Request: req}
			observations = append(observations, Observation{Exchange: current, Phase: libs.PhaseRequest})
		case "response":
			if current == nil {
				return observations, fmt.Errorf("section %d: response without request", i+1)
			}
			res, err := ParseBurpResponse(s.body, current.Request.Method)
			if err != nil {
				return observations, fmt.Errorf("section %d: %w", i+1, err)
			}
			ex := &libs.Exchange{ID: current.ID, Request: current.Request, Response: res}
			observations = append(observations, Observation{Exchange: ex, Phase: libs.PhaseResponse})
		default:
			return observations, fmt.Errorf("section %d: unknown kind %q", i+1, s.kind)
		}
	}
	return observations, nil
}

type rawSection struct {
	kind string
	body string
}

func splitSections(content string) []rawSection {
	var sections []rawSection
	var buf bytes.Buffer
	kind := ""
	flush := func() {
		if kind != "" {
			sections = append(sections, rawSection{kind: kind, body: strings.TrimRight(buf.String(), "\r\n")})
		}
		buf.Reset()
	}
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, rawMarker) {
			flush()
			kind = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, rawMarker)))
			continue
		}
		if kind == "" {
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()
	return sections
}
