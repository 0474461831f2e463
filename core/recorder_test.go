package core

import (
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

func TestRecorder(t *testing.T) {
	dir, err := ioutil.TempDir("", "qrlchecker-recorder")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	var options libs.Options
	options.Debug = true
	options.Output = dir
	options.Target.URL = "https://t.example.com/login"
	r := NewRecorder(options)

	req := libs.Request{
		Method:  "GET",
		URL:     "https://t.example.com/status?sid=ABC123",
		Headers: []map[string]string{{"Accept": "*/*"}},
	}
	r.Record(&libs.Exchange{ID: "1", Request: req}, libs.PhaseRequest)
	r.Record(&libs.Exchange{ID: "1", Request: req, Response: libs.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Headers:    []map[string]string{{"Content-Type": "text/plain; charset=gbk"}},
		Body:       []byte{0xD6, 0xD0, 0xCE, 0xC4},
	}}, libs.PhaseResponse)

	content := utils.GetFileContent(r.Path())
	for _, want := range []string{
		"[Request1]",
		"GET https://t.example.com/status?sid=ABC123 HTTP/1.1",
		"Accept: */*",
		"[Response] GET https://t.example.com/status?sid=ABC123",
		"200 OK",
		"中文",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Traffic log should contain %q:\n%v", want, content)
		}
	}
}

func TestRecorderDisabled(t *testing.T) {
	dir, err := ioutil.TempDir("", "qrlchecker-recorder")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	var options libs.Options
	options.Output = dir
	r := NewRecorder(options)
	r.Record(&libs.Exchange{ID: "1", Request: libs.Request{Method: "GET", URL: "https://t.example.com/"}}, libs.PhaseRequest)
	if utils.FileExists(r.Path()) {
		t.Errorf("Recorder should only write in debug mode")
	}
}
