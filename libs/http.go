package libs

import (
	"strings"
)

// Phase which half of an exchange was observed
type Phase string

const (
	// PhaseRequest request captured, response may still be pending
	PhaseRequest Phase = "request"
	// PhaseResponse response captured
	PhaseResponse Phase = "response"
)

// Exchange one HTTP request and its eventual response
type Exchange struct {
	ID       string
	Request  Request
	Response Response
}

// Request all information about request
type Request struct {
	Method  string
	URL     string
	Headers []map[string]string
	Body    []byte
}

// Response all information about response
type Response struct {
	StatusCode int
	Status     string
	Headers    []map[string]string
	Body       []byte
}

// GetHeader get first header value by case-insensitive name
func GetHeader(headers []map[string]string, name string) string {
	for _, header := range headers {
		for k, v := range header {
			if strings.EqualFold(k, name) {
				return v
			}
		}
	}
	return ""
}

// SetHeader replace every header with that name or append a new one
func SetHeader(headers []map[string]string, name string, value string) []map[string]string {
	var result []map[string]string
	replaced := false
	for _, header := range headers {
		for k := range header {
			if strings.EqualFold(k, name) {
				if !replaced {
					result = append(result, map[string]string{k: value})
					replaced = true
				}
				continue
			}
			result = append(result, header)
		}
	}
	if !replaced {
		result = append(result, map[string]string{name: value})
	}
	return result
}
