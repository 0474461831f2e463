package core

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

// DefaultRefresh seconds between two completion checks
const DefaultRefresh = 3

// CompletionSignal tells the watcher the login flow is over
type CompletionSignal interface {
	Done() bool
}

// FileSignal done when the flag file exists
type FileSignal struct {
	Path string
}

// Done check the flag file
func (f FileSignal) Done() bool {
	return utils.FileExists(f.Path)
}

// Reset remove a stale flag file from a previous run
func (f FileSignal) Reset() {
	if utils.FileExists(f.Path) {
		utils.DebugF("Removing stale done flag %v", f.Path)
		os.Remove(f.Path)
	}
}

// FlagSignal in process completion flag
type FlagSignal struct {
	done int32
}

// Set mark the flow done
func (f *FlagSignal) Set() {
	atomic.StoreInt32(&f.done, 1)
}

// Done check the flag
func (f *FlagSignal) Done() bool {
	return atomic.LoadInt32(&f.done) == 1
}

// Watcher waits for the completion signal then runs one detection pass
type Watcher struct {
	options libs.Options
	session *Session
	signal  CompletionSignal
	// OnVerdict is called once with the verdict
	OnVerdict func(libs.Verdict)
}

// NewWatcher create a watcher over a session
func NewWatcher(options libs.Options, session *Session, signal CompletionSignal) *Watcher {
	return &Watcher{options: options, session: session, signal: signal}
}

// Run block until the signal is observed, then analyze once and exit
func (w *Watcher) Run(ctx context.Context) (libs.Verdict, error) {
	refresh := w.options.Refresh
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	ticker := time.NewTicker(time.Duration(refresh) * time.Second)
	defer ticker.Stop()

	for !w.signal.Done() {
		utils.DebugF("Waiting for QR login to finish")
		select {
		case <-ctx.Done():
			return libs.Verdict{}, ctx.Err()
		case <-ticker.C:
		}
	}
	utils.InforF("QR login done, start analyzing %v", w.options.Target.URL)

	verdict := w.session.Analyze(ctx)
	Background(w.options, verdict)
	if w.OnVerdict != nil {
		w.OnVerdict(verdict)
	}
	return verdict, nil
}

// Background store and print the verdict of a detection pass
func Background(options libs.Options, verdict libs.Verdict) {
	PrintVerdict(verdict)
	if !options.NoDB {
		database.ImportVerdict(verdict)
	}
	if options.NoOutput {
		return
	}
	if p, err := StoreResult(options, verdict); err != nil {
		utils.ErrorF("Error writing result: %v", err)
	} else {
		utils.InforF("Result written: %v", p)
	}
	if p, err := GenReport(options, verdict); err != nil {
		utils.ErrorF("Error generating report: %v", err)
	} else {
		utils.GoodF("Report generated: %v", p)
	}
}
