package libs

// Flaw index of a QR login flaw class
type Flaw int

const (
	F1UnboundSessionID Flaw = iota
	F2ReusableQRCode
	F3PredictableQRID
	F4ControllableQRID
	F5InvalidTokenValidation
	F6SensitiveDataLeakage
)

// FlawCount number of probes in one detection pass
const FlawCount = 6

// Status outcome of a single probe
type Status string

const (
	StatusAbsent        Status = "absent"
	StatusPresent       Status = "present"
	StatusIndeterminate Status = "indeterminate"
)

var flawNames = [FlawCount]string{
	"Unbound session_id",
	"Reusable qrcode",
	"Predictable qr_id",
	"Controllable qr_id",
	"Invalid token validation",
	"Sensitive data leakage",
}

var flawMitigations = [FlawCount]string{
	"- Ensure that the server binds the `sessionId` with the `QrId` when generating the QR code.\n- Validate that the `sessionId` is checked against the `QrId` on each polling request to confirm the legitimacy of the requester.",
	"- Set an expiration time for each `QrId` to prevent reuse after a successful login.\n- Invalidate the `QrId` immediately after the user completes the QRLogin process.",
	"- Use a strong randomization process for generating `QrId` to ensure they are not easily predictable.\n- Incorporate a mix of alphanumeric characters and appropriate length to enhance the complexity of `QrId`.",
	"- Generate `QrId` on the server-side to prevent client-side manipulation.",
	"- Strengthen the validation of `app_token` on the server to ensure it matches the user's identity before authorizing the login.\n- Avoid relying solely on user identifiers like phone numbers for authentication without verifying the corresponding `app_token`.",
	"- Review and remove any unnecessary transmission of sensitive user data during the QRLogin process.\n- Ensure all sensitive information is encrypted during transmission and is not exposed in server responses.",
}

// Name human readable flaw name
func (f Flaw) Name() string {
	if f < 0 || int(f) >= FlawCount {
		return "unknown"
	}
	return flawNames[f]
}

// Code short code like F1
func (f Flaw) Code() string {
	return "F" + string(rune('1'+int(f)))
}

// Mitigation fixed mitigation text of a flaw
func (f Flaw) Mitigation() string {
	if f < 0 || int(f) >= FlawCount {
		return ""
	}
	return flawMitigations[f]
}

// FlawResult result of one probe
type FlawResult struct {
	Flaw     Flaw     `json:"flaw"`
	Status   Status   `json:"status"`
	Leaked   []string `json:"leaked,omitempty"`
	Evidence []string `json:"evidence,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Present flaw detected
func (r FlawResult) Present() bool {
	return r.Status == StatusPresent
}

// Verdict the six results of one detection pass
type Verdict struct {
	ScanID     string                `json:"scan_id"`
	Target     string                `json:"target"`
	TokenField string                `json:"token_field"`
	Token      string                `json:"token"`
	Results    [FlawCount]FlawResult `json:"results"`
}

// Bools legacy boolean vector, indeterminate counts as false
func (v Verdict) Bools() [FlawCount]bool {
	var res [FlawCount]bool
	for i, r := range v.Results {
		res[i] = r.Present()
	}
	return res
}

// Detected flaws reported as present
func (v Verdict) Detected() []Flaw {
	var flaws []Flaw
	for _, r := range v.Results {
		if r.Present() {
			flaws = append(flaws, r.Flaw)
		}
	}
	return flaws
}
