package core

import (
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Observation one captured half of an exchange, in capture order
type Observation struct {
	Exchange *libs.Exchange
	Phase    libs.Phase
}

// LoadCapture read a capture file, .har files are HAR and everything else a raw capture
func LoadCapture(filename string) ([]Observation, error) {
	data, err := ioutil.ReadFile(utils.NormalizePath(filename))
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(filename), ".har") {
		return ParseHAR(data)
	}
	return ParseRawCapture(string(data))
}

// ParseHAR every entry yields a request observation then a response observation
func ParseHAR(data []byte) ([]Observation, error) {
	jsonParsed, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse HAR: %w", err)
	}
	if !jsonParsed.Exists("log", "entries") {
		return nil, fmt.Errorf("parse HAR: no log.entries")
	}

	var observations []Observation
	for _, entry := range jsonParsed.Search("log", "entries").Children() {
		req := libs.Request{
			Method:  cast.ToString(entry.Path("request.method").Data()),
			URL:     cast.ToString(entry.Path("request.url").Data()),
			Headers: harHeaders(entry.Path("request.headers")),
		}
		if entry.ExistsP("request.postData.text") {
			req.Body = []byte(cast.ToString(entry.Path("request.postData.text").Data()))
		}
		id := uuid.NewString()
		observations = append(observations, Observation{
			Exchange: &libs.Exchange{ID: id, Request: req},
			Phase:    libs.PhaseRequest,
		})

		status := cast.ToInt(entry.Path("response.status").Data())
		// status 0 means the request never got an answer
		if status == 0 {
			continue
		}
		res := libs.Response{
			StatusCode: status,
			Status:     strings.TrimSpace(fmt.Sprintf("%d %v", status, cast.ToString(entry.Path("response.statusText").Data()))),
			Headers:    harHeaders(entry.Path("response.headers")),
		}
		text := cast.ToString(entry.Path("response.content.text").Data())
		if cast.ToString(entry.Path("response.content.encoding").Data()) == "base64" {
			if decoded, err := base64.StdEncoding.DecodeString(text); err == nil {
				res.Body = decoded
			}
		} else {
			res.Body = []byte(text)
		}
		observations = append(observations, Observation{
			Exchange: &libs.Exchange{ID: id, Request: req, Response: res},
			Phase:    libs.PhaseResponse,
		})
	}
	return observations, nil
}

func harHeaders(container *gabs.Container) []map[string]string {
	var headers []map[string]string
	for _, h := range container.Children() {
		name := cast.ToString(h.Path("name").Data())
		if name == "" || strings.HasPrefix(name, ":") {
			continue
		}
		headers = append(headers, map[string]string{name: cast.ToString(h.Path("value").Data())})
	}
	return headers
}

// Feed pass observations to a session in capture order
func Feed(session *Session, observations []Observation) {
	for _, o := range observations {
		if o.Phase == libs.PhaseRequest {
			session.OnRequest(o.Exchange)
		} else {
			session.OnResponse(o.Exchange)
		}
	}
}
