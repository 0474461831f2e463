package core

import (
	"net/http"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

// tokenFieldHints substrings that mark a field name as the QR id
var tokenFieldHints = []string{"id", "qr", "token", "code", "login", "no"}

// crossValidationMisses polling requests allowed to lack the token
const crossValidationMisses = 2

// Correlator resolves exchange roles from the ledger
type Correlator struct {
	options  libs.Options
	ledger   *Ledger
	apps     *AppFlowSet
	noise    *NoiseFilter
	bindings *RoleBindings
}

// NewCorrelator create a correlator over a ledger and the app flows
func NewCorrelator(options libs.Options, ledger *Ledger, apps *AppFlowSet) *Correlator {
	return &Correlator{
		options:  options,
		ledger:   ledger,
		apps:     apps,
		noise:    NewNoiseFilter(options.DictionaryFile, options.LocaleConstants),
		bindings: &RoleBindings{},
	}
}

// Bindings current role bindings
func (c *Correlator) Bindings() *RoleBindings {
	return c.bindings
}

// Prepare run every correlation step once and return the bindings
func (c *Correlator) Prepare(candidates []TokenCandidate) *RoleBindings {
	utils.InforF("Starting preparation")
	if c.options.Target.TokenField != "" {
		c.locatePollingByField(c.options.Target.TokenField)
	} else {
		c.identifyPolling(candidates)
	}
	c.locateCreation()
	c.discoverCookieSource()
	c.locateAppLogin()
	c.bindings.Settle()
	utils.DebugF("Bindings state: %v", c.bindings.State)
	return c.bindings
}

func (c *Correlator) identifyPolling(candidates []TokenCandidate) {
	if c.bindings.State == Bound {
		return
	}
	params := c.noise.Filter(candidates)
	utils.InforF("Filtered qrcode params: %v", params)
	if len(params) == 0 {
		utils.ErrorF("No usable qrcode params")
		return
	}

	ranked := c.ledger.RankURLsByFrequency()
	utils.DebugF("Sorted url counts: %v", ranked)
	groups := c.ledger.GroupRequestsByURL()
	for _, uc := range ranked {
		group := groups[uc.URL]
		for _, ex := range group {
			if ex.Request.Method == http.MethodOptions {
				continue
			}
			matched := c.matchParams(ex, params)
			if matched == 0 {
				continue
			}
			if matched > 1 {
				c.disambiguate()
			}
			c.checkPolling(ex, group)
			if c.bindings.State == Bound {
				utils.InforF("Determine polling request: %v %v", c.bindings.PollingExchange.Request.Method, c.bindings.PollingURL)
				return
			}
		}
	}
	utils.ErrorF("Cannot match qrcode params with polling request")
}

func (c *Correlator) matchParams(ex *libs.Exchange, params []TokenCandidate) int {
	matched := 0
	for _, p := range params {
		field := Search(ex, libs.PhaseRequest, p.Value)
		if field == "" {
			continue
		}
		matched++
		c.bindings.AddToken(field, p.Value)
	}
	return matched
}

// disambiguate keep a hinted field name, else the longest value
func (c *Correlator) disambiguate() {
	tokens := c.bindings.Tokens()
	if len(tokens) < 2 {
		return
	}
	var kept TokenCandidate
	for _, t := range tokens {
		if hasHint(t.Field) {
			kept = t
			break
		}
		if len(t.Value) > len(kept.Value) {
			kept = t
		}
	}
	c.bindings.KeepToken(kept)
	c.bindings.TokenFieldAtPoll = kept.Field
	utils.InforF("Multiple qrid matched, keep %v=%v", kept.Field, kept.Value)
}

func hasHint(field string) bool {
	lower := strings.ToLower(field)
	for _, hint := range tokenFieldHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func (c *Correlator) checkPolling(ex *libs.Exchange, group []*libs.Exchange) {
	chosen := ex
	if ex.Request.Method == http.MethodPost {
		for _, other := range group {
			if other.Request.Method == http.MethodGet {
				chosen = other
				break
			}
		}
	}
	if err := c.bindings.Bind(chosen); err != nil {
		utils.DebugF("%v", err)
		return
	}
	token, _ := c.bindings.Token()
	c.bindings.TokenFieldAtPoll = token.Field
	utils.InforF("Determine qrid: %v=%v", token.Field, token.Value)

	misses := 0
	for _, other := range group {
		if other.Request.Method == http.MethodOptions {
			continue
		}
		if Search(other, libs.PhaseRequest, token.Value) != "" {
			continue
		}
		misses++
		if misses > crossValidationMisses {
			utils.InforF("Clear polling: %v", c.bindings.PollingURL)
			c.bindings.Reject()
			return
		}
	}
}

// locatePollingByField config-driven mode, the token field name is known
func (c *Correlator) locatePollingByField(field string) {
	if c.bindings.State == Bound {
		return
	}
	pollingURL := c.options.Target.PollingURL
	c.ledger.ScanForward(func(e Entry) bool {
		ex := e.Exchange
		if e.Phase != libs.PhaseRequest || ex.Request.Method == http.MethodOptions {
			return true
		}
		if pollingURL != "" && !sameURL(ex.Request.URL, pollingURL) {
			return true
		}
		value := LocateValue(ex, libs.PhaseRequest, field)
		if value == "" || value == LocatedNoValue {
			if pollingURL != "" {
				utils.InforF("Not found qrid %v in polling request %v", field, ex.Request.URL)
			}
			return true
		}
		c.bindings.AddToken(field, value)
		if err := c.bindings.Bind(ex); err != nil {
			return true
		}
		c.bindings.TokenFieldAtPoll = field
		utils.InforF("Found polling request %v with qrid %v", ex.Request.URL, value)
		return false
	})
}

func (c *Correlator) locateCreation() {
	token, ok := c.bindings.Token()
	if !ok || c.bindings.Creation != nil || c.bindings.PollingExchange == nil {
		return
	}
	utils.InforF("Searching create qrcode request")
	pollURL := NormalizeURL(c.bindings.PollingURL)
	pollMethod := c.bindings.PollingExchange.Request.Method
	generationURL := c.options.Target.GenerationURL

	c.ledger.ScanForward(func(e Entry) bool {
		ex := e.Exchange
		if ex.Request.Method == http.MethodOptions {
			return true
		}
		if e.Phase == libs.PhaseRequest && NormalizeURL(ex.Request.URL) == pollURL && ex.Request.Method == pollMethod {
			return true
		}
		if generationURL != "" && !sameURL(ex.Request.URL, generationURL) {
			return true
		}
		field := Search(ex, e.Phase, token.Value)
		if field == "" {
			return true
		}
		c.bindings.TokenFieldAtCreation = field
		c.bindings.Creation = &CreationBinding{Exchange: ex, Phase: e.Phase}
		utils.InforF("Found create qrcode %v: %v %v (%v)", e.Phase, ex.Request.Method, ex.Request.URL, field)
		return false
	})
}

// discoverCookieSource find the response that handed out the creation cookies
func (c *Correlator) discoverCookieSource() {
	creation := c.bindings.Creation
	if creation == nil || c.bindings.CookieSourceURL != "" {
		return
	}
	cookies := RequestCookies(creation.Exchange)
	if len(cookies) == 0 {
		return
	}
	c.ledger.ScanForward(func(e Entry) bool {
		if e.Phase != libs.PhaseResponse {
			return true
		}
		text := HeadersText(e.Exchange.Response.Headers)
		for _, ck := range cookies {
			if !strings.Contains(text, ck.Name) || !strings.Contains(text, ck.Value) {
				return true
			}
		}
		c.bindings.CookieSourceURL = e.Exchange.Request.URL
		utils.InforF("Found cookie source: %v", c.bindings.CookieSourceURL)
		return false
	})
}

func (c *Correlator) locateAppLogin() {
	if len(c.apps.LoginRequests()) > 0 {
		return
	}
	authorizationURL := c.options.Target.AuthorizationURL
	token := c.bindings.TokenValue()
	if token == "" && authorizationURL == "" {
		return
	}
	for _, e := range c.apps.Entries() {
		if e.Phase != libs.PhaseRequest {
			continue
		}
		if authorizationURL != "" {
			if sameURL(e.Exchange.Request.URL, authorizationURL) {
				c.apps.AddLoginRequest(e)
				utils.InforF("[app] Found login request: %v", e.Exchange.Request.URL)
			}
			continue
		}
		if Search(e.Exchange, libs.PhaseRequest, token) != "" {
			c.apps.AddLoginRequest(e)
			utils.InforF("[app] Found login request: %v", e.Exchange.Request.URL)
			return
		}
	}
}

func sameURL(a string, b string) bool {
	return a == b || NormalizeURL(a) == NormalizeURL(b)
}
