package core

import (
	"context"
	"strings"
	"time"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// Session the interception side of one analysis, it only appends to the
// ledger and the app flows until detection seals them
type Session struct {
	options     libs.Options
	ledger      *Ledger
	apps        *AppFlowSet
	coordinator *Coordinator
	recorder    *Recorder
	bindings    *RoleBindings
}

// NewSession create a session with an empty ledger and no replay channel
func NewSession(options libs.Options) *Session {
	return &Session{
		options:     options,
		ledger:      NewLedger(),
		apps:        &AppFlowSet{},
		coordinator: NewCoordinator(nil, time.Duration(options.ReplayTimeout)*time.Second),
		recorder:    NewRecorder(options),
	}
}

// Ledger captured browser traffic
func (s *Session) Ledger() *Ledger {
	return s.ledger
}

// Apps captured app traffic
func (s *Session) Apps() *AppFlowSet {
	return s.apps
}

// Coordinator replay coordinator of this session
func (s *Session) Coordinator() *Coordinator {
	return s.coordinator
}

// Bindings correlation result, nil before detection
func (s *Session) Bindings() *RoleBindings {
	return s.bindings
}

// SetChannel attach the replay channel of the interception host
func (s *Session) SetChannel(channel ReplayChannel) {
	s.coordinator.SetChannel(channel)
}

// OnRequest interception callback for a request
func (s *Session) OnRequest(ex *libs.Exchange) {
	if ex.ID != "" && s.coordinator.IsPending(ex.ID) {
		return
	}
	s.capture(snapshot(ex), libs.PhaseRequest)
}

// OnResponse interception callback for a response, replay responses go to the coordinator
func (s *Session) OnResponse(ex *libs.Exchange) {
	snap := snapshot(ex)
	if s.coordinator.Deliver(snap) {
		return
	}
	s.capture(snap, libs.PhaseResponse)
}

// OnReplayError a replay could not be sent, its waiter gives up right away
func (s *Session) OnReplayError(ex *libs.Exchange, err error) {
	if !s.coordinator.Fail(ex.ID, err) {
		utils.DebugF("[REPLAY] late failure of %v: %v", ex.Request.URL, err)
	}
}

func (s *Session) capture(ex *libs.Exchange, phase libs.Phase) {
	if s.ledger.Sealed() {
		utils.DebugF("[%v] ignored after seal: %v %v", phase, ex.Request.Method, ex.Request.URL)
		return
	}
	s.recorder.Record(ex, phase)
	if s.isApp(ex) {
		s.apps.Add(ex, phase)
		return
	}
	s.ledger.Append(ex, phase)
}

func (s *Session) isApp(ex *libs.Exchange) bool {
	if s.options.AppMarker == "" {
		return false
	}
	return strings.Contains(libs.GetHeader(ex.Request.Headers, "User-Agent"), s.options.AppMarker)
}

// Analyze seal the capture then run correlation and every probe
func (s *Session) Analyze(ctx context.Context) libs.Verdict {
	s.ledger.Seal()
	utils.InforF("Captured %v exchanges, %v app exchanges", s.ledger.Len(), len(s.apps.Entries()))

	correlator := NewCorrelator(s.options, s.ledger, s.apps)
	s.bindings = correlator.Prepare(ExtractQRParams(s.options.Target.QRPayload))
	detector := NewDetector(s.options, s.ledger, s.apps, s.bindings, s.coordinator)
	return detector.Detect(ctx)
}

// snapshot private copy of a host owned exchange, the ID is kept
func snapshot(ex *libs.Exchange) *libs.Exchange {
	snap := &libs.Exchange{}
	if err := copier.CopyWithOption(snap, ex, copier.Option{DeepCopy: true}); err != nil {
		utils.ErrorF("Error copying exchange: %v", err)
		*snap = *ex
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	return snap
}
