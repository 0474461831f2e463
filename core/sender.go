package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/go-resty/resty/v2"
)

// ExchangeSink receives replay responses and send failures
type ExchangeSink interface {
	OnResponse(ex *libs.Exchange)
	OnReplayError(ex *libs.Exchange, err error)
}

// DirectChannel replays exchanges by sending them straight to the target
type DirectChannel struct {
	options libs.Options
	sink    ExchangeSink
}

// NewDirectChannel channel used when no interception host is attached
func NewDirectChannel(options libs.Options, sink ExchangeSink) *DirectChannel {
	return &DirectChannel{options: options, sink: sink}
}

// SubmitReplay send in the background and hand the response to the sink
func (c *DirectChannel) SubmitReplay(ex *libs.Exchange) error {
	go func() {
		res, err := JustSend(c.options, ex.Request)
		if err != nil {
			utils.ErrorF("Error replaying %v: %v", ex.Request.URL, err)
			c.sink.OnReplayError(ex, err)
			return
		}
		replayed := *ex
		replayed.Response = res
		c.sink.OnResponse(&replayed)
	}()
	return nil
}

func newClient(options libs.Options) *resty.Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10
	}
	client := resty.New()
	client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	client.SetTimeout(time.Duration(timeout) * time.Second)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	if options.Proxy != "" {
		client.SetProxy(options.Proxy)
	}
	if options.Retry > 0 {
		client.SetRetryCount(options.Retry)
	}
	return client
}

// JustSend just sending request
func JustSend(options libs.Options, req libs.Request) (libs.Response, error) {
	client := newClient(options)
	r := client.R()
	for _, header := range req.Headers {
		for k, v := range header {
			// resty computes these itself
			if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, "Host") {
				continue
			}
			r.SetHeader(k, v)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		if options.Verbose {
			utils.ErrorF("Error sending: %v %v", req.URL, err)
		}
		return libs.Response{}, err
	}
	return ParseResponse(resp), nil
}

// ParseResponse resty response to Response
func ParseResponse(resp *resty.Response) (res libs.Response) {
	for k, values := range resp.Header() {
		for _, v := range values {
			res.Headers = append(res.Headers, map[string]string{k: v})
		}
	}
	res.StatusCode = resp.StatusCode()
	res.Status = resp.Status()
	res.Body = resp.Body()
	return res
}

// FetchCookieHeader unauthenticated GET, the cookies handed out become a Cookie header.
// Network errors give an empty header.
func FetchCookieHeader(options libs.Options, target string) string {
	if target == "" {
		return ""
	}
	resp, err := newClient(options).R().Get(target)
	if err != nil {
		utils.WarningF("Error fetching cookies from %v: %v", target, err)
		return ""
	}
	var parts []string
	for _, ck := range resp.Cookies() {
		parts = append(parts, fmt.Sprintf("%s=%s", ck.Name, ck.Value))
	}
	return strings.Join(parts, "; ")
}

// BeautifyRequest beautify request
func BeautifyRequest(req libs.Request) string {
	var beautifyReq string
	// hardcord HTTP/1.1 for now
	beautifyReq += fmt.Sprintf("%v %v HTTP/1.1\n", req.Method, req.URL)

	for _, header := range req.Headers {
		for key, value := range header {
			if key != "" && value != "" {
				beautifyReq += fmt.Sprintf("%v: %v\n", key, value)
			}
		}
	}
	if len(req.Body) > 0 {
		beautifyReq += fmt.Sprintf("\n%s\n", req.Body)
	}
	return beautifyReq
}

// BeautifyResponse beautify response
func BeautifyResponse(res libs.Response) string {
	var beautifyRes string
	beautifyRes += fmt.Sprintf("%v \n", res.Status)

	for _, header := range res.Headers {
		for key, value := range header {
			beautifyRes += fmt.Sprintf("%v: %v\n", key, value)
		}
	}

	beautifyRes += fmt.Sprintf("\n%s\n", res.Body)
	return beautifyRes
}
