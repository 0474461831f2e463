package core

import (
	"fmt"
	"net/url"
	"strings"
)

// ExtractQRParams turn decoded QR text into ordered token candidates
func ExtractQRParams(text string) []TokenCandidate {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if v, ok := parseOrderedJSON(text); ok {
		if obj, isObj := v.(*Object); isObj {
			var params []TokenCandidate
			Flatten(obj).Each(func(k string, v interface{}) bool {
				params = append(params, TokenCandidate{Field: k, Value: Stringify(v)})
				return true
			})
			return params
		}
	}

	if u, err := url.Parse(text); err == nil && u.Scheme != "" && (u.Host != "" || u.Opaque != "") {
		var params []TokenCandidate
		for _, p := range parsePairs(u.RawQuery, false) {
			params = append(params, TokenCandidate{Field: p.Key, Value: p.Value})
		}
		if strings.Contains(u.Fragment, "=") {
			frag := u.Fragment
			if i := strings.Index(frag, "?"); i >= 0 {
				frag = frag[i+1:]
			}
			for _, p := range parsePairs(frag, false) {
				params = append(params, TokenCandidate{Field: p.Key, Value: p.Value})
			}
		}
		for i, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
			if seg == "" {
				continue
			}
			params = append(params, TokenCandidate{Field: fmt.Sprintf("path%d", i), Value: unquote(seg)})
		}
		return params
	}

	if strings.Contains(text, "=") && !strings.ContainsAny(text, " \n") {
		var params []TokenCandidate
		for _, p := range parsePairs(text, false) {
			params = append(params, TokenCandidate{Field: p.Key, Value: p.Value})
		}
		if len(params) > 0 {
			return params
		}
	}
	return []TokenCandidate{{Field: "payload", Value: text}}
}
