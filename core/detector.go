package core

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

const (
	// StatusUnscanned polling status meaning the QR code waits for a scan
	StatusUnscanned = "unscanned"
	// StatusLoggedIn polling status meaning the login was authorized
	StatusLoggedIn = "logged-in"
)

var staticExtensions = []string{".jpg", ".png", ".css", ".js"}

// Detector runs the six flaw probes over a sealed ledger
type Detector struct {
	options     libs.Options
	ledger      *Ledger
	apps        *AppFlowSet
	bindings    *RoleBindings
	coordinator *Coordinator
}

// NewDetector create a detector for one detection pass
func NewDetector(options libs.Options, ledger *Ledger, apps *AppFlowSet, bindings *RoleBindings, coordinator *Coordinator) *Detector {
	return &Detector{
		options:     options,
		ledger:      ledger,
		apps:        apps,
		bindings:    bindings,
		coordinator: coordinator,
	}
}

// Detect run every probe in order, the verdict always carries six results
func (d *Detector) Detect(ctx context.Context) libs.Verdict {
	utils.InforF("Start detecting flaw...")
	token, _ := d.bindings.Token()
	verdict := libs.Verdict{
		ScanID:     d.options.ScanID,
		Target:     d.options.Target.URL,
		TokenField: token.Field,
		Token:      token.Value,
	}

	probes := [libs.FlawCount]func(context.Context) libs.FlawResult{
		d.UnboundSession,
		d.ReusableQRCode,
		d.PredictableQRID,
		d.ControllableQRID,
		d.InvalidTokenValidation,
		d.SensitiveDataLeakage,
	}
	for i, probe := range probes {
		flaw := libs.Flaw(i)
		utils.InforF("======= Start detecting flaw %v: %v =======", flaw.Code(), flaw.Name())
		result := probe(ctx)
		result.Flaw = flaw
		if result.Reason != "" {
			utils.DebugF("[%v] %v", flaw.Code(), result.Reason)
		}
		verdict.Results[i] = result
	}
	return verdict
}

func absent(reason string, args ...interface{}) libs.FlawResult {
	return libs.FlawResult{Status: libs.StatusAbsent, Reason: fmt.Sprintf(reason, args...)}
}

func indeterminate(err error) libs.FlawResult {
	return libs.FlawResult{Status: libs.StatusIndeterminate, Reason: err.Error()}
}

func (d *Detector) replayAndWait(ctx context.Context, ex *libs.Exchange) (*libs.Exchange, error) {
	pending, err := d.coordinator.Replay(ex)
	if err != nil {
		return nil, err
	}
	return d.coordinator.Await(ctx, pending)
}

func (d *Detector) statusMode() bool {
	return d.options.Target.StatusIndicator != "" && len(d.options.Target.StatusValues) > 0
}

// UnboundSession F1, a token never bound to our session is accepted by the polling endpoint
func (d *Detector) UnboundSession(ctx context.Context) libs.FlawResult {
	b := d.bindings
	if !b.Ready() {
		return absent("not ready: polling %v, token %v, creation %v", b.PollingExchange != nil, b.TokenValue() != "", b.Creation != nil)
	}
	token, _ := b.Token()
	creation := b.Creation

	// stage one: the client chose the token so we can choose another one
	newToken := b.NewToken
	if newToken == nil && creation.Phase == libs.PhaseRequest {
		if mutated, ok := MutateToken(token.Value); ok {
			newToken = &TokenCandidate{Field: b.TokenFieldAtCreation, Value: mutated}
			utils.InforF("[F1] create new qrid: %v", mutated)
		} else {
			utils.WarningF("[F1] qrid %v has no digit or letter to mutate", token.Value)
		}
	}

	if b.CreationReplay == nil {
		clone := CloneExchange(creation.Exchange)
		source := b.CookieSourceURL
		if source == "" {
			source = d.options.Target.URL
		}
		cookie := FetchCookieHeader(d.options, source)
		clone.Request.Headers = libs.SetHeader(clone.Request.Headers, "Cookie", cookie)
		if newToken != nil {
			SubstituteField(clone, token.Value, newToken.Value, token.Field, b.TokenFieldAtCreation)
		}
		b.CreationReplay = clone

		resp, err := d.replayAndWait(ctx, clone)
		if err != nil {
			return indeterminate(fmt.Errorf("replay create qrcode request: %w", err))
		}
		// stage two: the server minted a fresh token for the new session
		if newToken == nil {
			newToken = extractNewToken(resp, b.TokenFieldAtCreation, token.Value)
		}
	}
	if newToken == nil {
		return absent("cannot find new qrid value")
	}
	b.NewToken = newToken
	utils.InforF("[F1] new qrid: %v=%v", newToken.Field, newToken.Value)

	poll := SubstituteField(CloneExchange(b.PollingExchange), token.Value, newToken.Value, token.Field)
	resp, err := d.replayAndWait(ctx, poll)
	if err != nil {
		return indeterminate(fmt.Errorf("replay polling request: %w", err))
	}
	replayed := ParseBody(resp.Response.Headers, resp.Response.Body)
	utils.DebugF("[F1] replayed polling response: %v", replayed.Text)

	if d.statusMode() {
		status := EvaluateStatus(replayed.Fields, d.options.Target.StatusIndicator, d.options.Target.StatusValues)
		if status == StatusUnscanned {
			return libs.FlawResult{Status: libs.StatusPresent, Evidence: []string{poll.Request.URL}}
		}
		return absent("replayed polling status: %v", status)
	}

	legit := d.legitPollingResponse()
	if legit == nil {
		return indeterminate(fmt.Errorf("polling %v: %w", b.PollingURL, ErrNoReference))
	}
	captured := ParseBody(legit.Response.Headers, legit.Response.Body)
	if SameShape(captured.Fields, replayed.Fields, token.Value, newToken.Value) {
		utils.InforF("Flaw F1: Unbound session_id exists!")
		return libs.FlawResult{Status: libs.StatusPresent, Evidence: []string{poll.Request.URL}}
	}
	return absent("replayed polling response differs from the captured one")
}

// extractNewToken the token a replayed creation response handed out, body first then cookies
func extractNewToken(resp *libs.Exchange, field string, oldValue string) *TokenCandidate {
	if field == "" || field == MatchedNoName {
		return nil
	}
	content := ParseBody(resp.Response.Headers, resp.Response.Body)
	var found *TokenCandidate
	Flatten(content.Fields).Each(func(k string, v interface{}) bool {
		if k == field && Stringify(v) != oldValue {
			found = &TokenCandidate{Field: k, Value: Stringify(v)}
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	for _, ck := range ResponseCookies(resp) {
		if ck.Name == field && ck.Value != oldValue {
			return &TokenCandidate{Field: ck.Name, Value: ck.Value}
		}
	}
	return nil
}

// legitPollingResponse first captured polling response with a body, same URL and method
func (d *Detector) legitPollingResponse() *libs.Exchange {
	var legit *libs.Exchange
	method := d.bindings.PollingExchange.Request.Method
	d.ledger.ScanForward(func(e Entry) bool {
		ex := e.Exchange
		if e.Phase != libs.PhaseResponse || ex.Request.URL != d.bindings.PollingURL || ex.Request.Method != method {
			return true
		}
		if len(ex.Response.Body) == 0 {
			return true
		}
		legit = ex
		return false
	})
	return legit
}

// ReusableQRCode F2, the consumed QR code still authorizes a login
func (d *Detector) ReusableQRCode(ctx context.Context) libs.FlawResult {
	b := d.bindings
	if !b.Ready() {
		return absent("not ready: polling %v, token %v, creation %v", b.PollingExchange != nil, b.TokenValue() != "", b.Creation != nil)
	}

	if b.LoginSuccessResponse == nil {
		pollURL := NormalizeURL(b.PollingURL)
		d.ledger.ScanBackward(func(e Entry) bool {
			if e.Phase == libs.PhaseResponse && NormalizeURL(e.Exchange.Request.URL) == pollURL {
				b.LoginSuccessResponse = e.Exchange
				return false
			}
			return true
		})
	}
	if b.LoginSuccessResponse == nil && !d.statusMode() {
		return absent("no success response for %v", b.PollingURL)
	}

	poll := CloneExchange(b.PollingExchange)
	resp, err := d.replayAndWait(ctx, poll)
	if err != nil {
		return indeterminate(fmt.Errorf("replay polling request: %w", err))
	}
	replayed := ParseBody(resp.Response.Headers, resp.Response.Body)
	utils.DebugF("[F2] replayed polling response: %v", replayed.Text)

	if d.statusMode() {
		status := EvaluateStatus(replayed.Fields, d.options.Target.StatusIndicator, d.options.Target.StatusValues)
		if status == StatusLoggedIn {
			return libs.FlawResult{Status: libs.StatusPresent, Evidence: []string{poll.Request.URL}}
		}
		return absent("replayed polling status: %v", status)
	}

	success := ParseBody(b.LoginSuccessResponse.Response.Headers, b.LoginSuccessResponse.Response.Body)
	utils.DebugF("[F2] success response: %v", success.Text)
	if SameShape(success.Fields, replayed.Fields, "", "") {
		utils.InforF("Flaw F2: Reusable qrcode exists!")
		return libs.FlawResult{Status: libs.StatusPresent, Evidence: []string{poll.Request.URL}}
	}
	return absent("replayed polling response differs from the success response")
}

// PredictableQRID F3, short all digit token
func (d *Detector) PredictableQRID(_ context.Context) libs.FlawResult {
	value := d.bindings.TokenValue()
	if value == "" {
		return absent("not ready: qrid is empty")
	}
	if len(value) <= 6 && isDigits(value) {
		utils.InforF("Flaw F3: Predictable qr_id, %v", value)
		return libs.FlawResult{Status: libs.StatusPresent, Evidence: []string{value}}
	}
	return absent("qrid %v is not predictable", value)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// ControllableQRID F4, the token first appears in a client request
func (d *Detector) ControllableQRID(_ context.Context) libs.FlawResult {
	creation := d.bindings.Creation
	if creation == nil {
		return absent("not ready: create qrcode exchange not found")
	}
	if creation.Phase == libs.PhaseRequest {
		utils.InforF("Flaw F4: Controllable qr_id, %v", creation.Exchange.Request.URL)
		return libs.FlawResult{Status: libs.StatusPresent, Evidence: []string{creation.Exchange.Request.URL}}
	}
	return absent("qrid is minted by the server")
}

// InvalidTokenValidation F5, the app authorizes with a plain identity value
func (d *Detector) InvalidTokenValidation(_ context.Context) libs.FlawResult {
	logins := d.apps.LoginRequests()
	if len(logins) == 0 {
		return absent("not ready: app login request not found")
	}
	for _, e := range logins {
		if e.Phase != libs.PhaseRequest {
			continue
		}
		req := e.Exchange.Request
		content, err := Decode(req.Body, libs.GetHeader(req.Headers, "Content-Type"))
		if err != nil {
			content = string(req.Body)
		}
		for _, secret := range d.options.Secrets {
			if secret.Value == "" || !strings.Contains(content, secret.Value) {
				continue
			}
			utils.InforF("Flaw F5: Invalid token Validation, %v", secret.Label)
			return libs.FlawResult{
				Status:   libs.StatusPresent,
				Leaked:   []string{secret.Label},
				Evidence: []string{req.URL},
			}
		}
	}
	return absent("no secret in app login request")
}

// SensitiveDataLeakage F6, secrets returned to the browser after polling started
func (d *Detector) SensitiveDataLeakage(_ context.Context) libs.FlawResult {
	entries := d.ledger.Entries()
	start := -1
	for i, e := range entries {
		if e.Phase == libs.PhaseResponse && d.bindings.PollingURL != "" && e.Exchange.Request.URL == d.bindings.PollingURL {
			start = i
			break
		}
	}
	if start < 0 {
		return absent("not ready: no polling response")
	}

	result := libs.FlawResult{Status: libs.StatusAbsent}
	for _, secret := range d.options.Secrets {
		if secret.Value == "" {
			continue
		}
		for _, e := range entries[start:] {
			if e.Phase != libs.PhaseResponse || isStaticAsset(e.Exchange.Request) {
				continue
			}
			if Search(e.Exchange, libs.PhaseResponse, secret.Value) == "" {
				continue
			}
			utils.InforF("Flaw F6: Sensitive Data Leakage, %v in %v", secret.Label, e.Exchange.Request.URL)
			result.Leaked = append(result.Leaked, secret.Label)
			result.Evidence = append(result.Evidence, e.Exchange.Request.URL)
			break
		}
	}
	if len(result.Leaked) > 0 {
		result.Status = libs.StatusPresent
	}
	return result
}

func isStaticAsset(req libs.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	p := req.URL
	if u, err := url.Parse(req.URL); err == nil {
		p = u.Path
	}
	p = strings.ToLower(p)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// EvaluateStatus map the status indicator of a polling body to a status name
func EvaluateStatus(obj *Object, indicator string, values map[string]string) string {
	if obj == nil || indicator == "" {
		return ""
	}
	v, ok := Flatten(obj).Get(indicator)
	if !ok {
		return ""
	}
	text := Stringify(v)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if values[name] == text {
			return name
		}
	}
	return ""
}
