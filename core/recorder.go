package core

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

// Recorder writes captured traffic to a plain text log when debugging
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	path    string
	num     int
}

// NewRecorder traffic log of a target, the previous log is removed
func NewRecorder(options libs.Options) *Recorder {
	r := &Recorder{
		enabled: options.Debug,
		path:    path.Join(options.Output, "logs", fmt.Sprintf("traffic_%v.txt", utils.EscapeName(options.Target.URL))),
	}
	if r.enabled {
		os.Remove(r.path)
	}
	return r
}

// Path location of the traffic log
func (r *Recorder) Path() string {
	return r.path
}

// Record append one observation
func (r *Recorder) Record(ex *libs.Exchange, phase libs.Phase) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	if phase == libs.PhaseRequest {
		r.num++
		req := ex.Request
		req.Body = readableBody(req.Headers, req.Body)
		fmt.Fprintf(&b, "\n[Request%d]\n%v", r.num, BeautifyRequest(req))
	} else {
		res := ex.Response
		res.Body = readableBody(res.Headers, res.Body)
		fmt.Fprintf(&b, "\n[Response] %v %v\n%v", ex.Request.Method, ex.Request.URL, BeautifyResponse(res))
	}
	b.WriteString("\n\n")

	if _, err := utils.AppendToContent(r.path, b.String()); err != nil {
		utils.ErrorF("Error writing traffic log: %v", err)
	}
}

// readableBody body re-encoded as UTF-8 text, undecodable bodies are kept as is
func readableBody(headers []map[string]string, body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	text, err := Decode(body, libs.GetHeader(headers, "Content-Type"))
	if err != nil {
		return body
	}
	return []byte(text)
}
