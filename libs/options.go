package libs

// Options global options
type Options struct {
	RootFolder string
	ScanID     string
	ConfigFile string
	Output     string
	Proxy      string
	LogFile    string

	Concurrency   int
	Timeout       int
	ReplayTimeout int
	Refresh       int
	Retry         int
	Verbose       bool
	Debug         bool
	NoDB          bool
	NoOutput      bool

	// AppMarker is the User-Agent substring that tags app traffic
	AppMarker       string
	DictionaryFile  string
	DoneFlag        string
	LocaleConstants []string

	Target  Target
	Secrets []Secret
	Server  Server
	Report  Report
}

// Target what we know about the QR login flow under test
type Target struct {
	URL       string
	QRPayload string

	// config-driven deployments
	TokenField       string
	PollingURL       string
	GenerationURL    string
	AuthorizationURL string
	StatusIndicator  string
	StatusValues     map[string]string
}

// Secret a named credential value of the scanning account
type Secret struct {
	Label string
	Value string
}

// Server options for api server
type Server struct {
	NoAuth    bool
	Bind      string
	Cors      string
	JWTSecret string
	Username  string
	Password  string
}

// Report options for report
type Report struct {
	ReportName   string
	TemplateFile string
	ResultFolder string
	ReportFolder string
}
