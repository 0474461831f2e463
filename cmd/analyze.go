package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/panjf2000/ants"
	"github.com/spf13/cobra"
)

func init() {
	var analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Analyze captured QR login traffic",
		Long:  libs.Banner(),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringSliceP("capture", "C", []string{}, "HAR or raw capture file (repeatable)")
	analyzeCmd.Flags().StringP("captures", "F", "", "File containing a list of capture files")
	analyzeCmd.Flags().Bool("json", false, "Print verdicts as JSON lines")
	analyzeCmd.SetHelpFunc(AnalyzeHelp)
	RootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	captures, _ := cmd.Flags().GetStringSlice("capture")
	captureList, _ := cmd.Flags().GetString("captures")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if captureList != "" {
		captures = append(captures, utils.ReadingLines(captureList)...)
	}
	if len(captures) == 0 {
		return fmt.Errorf("no capture file given")
	}
	utils.InforF("Analyzing %v capture files", len(captures))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var mu sync.Mutex
	var wg sync.WaitGroup
	p, err := ants.NewPoolWithFunc(poolSize(options.Concurrency), func(i interface{}) {
		defer wg.Done()
		captureFile := i.(string)
		verdict, err := AnalyzeCapture(ctx, options, captureFile)
		if err != nil {
			utils.ErrorF("Error analyzing %v: %v", captureFile, err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if jsonOutput {
			fmt.Println(core.VerdictJSON(verdict))
		}
	}, ants.WithPreAlloc(true))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer p.Release()

	for _, captureFile := range captures {
		wg.Add(1)
		if err := p.Invoke(captureFile); err != nil {
			wg.Done()
			utils.ErrorF("Error queueing %v: %v", captureFile, err)
		}
	}
	wg.Wait()
	return nil
}

// poolSize worker count, at least one
func poolSize(concurrency int) int {
	if concurrency < 1 {
		return 1
	}
	return concurrency
}

// AnalyzeCapture run one full detection pass over a capture file, replays are sent directly
func AnalyzeCapture(ctx context.Context, options libs.Options, captureFile string) (libs.Verdict, error) {
	observations, err := core.LoadCapture(captureFile)
	if err != nil {
		return libs.Verdict{}, err
	}
	if len(observations) == 0 {
		return libs.Verdict{}, fmt.Errorf("no exchange in %v", captureFile)
	}
	options.ScanID = fmt.Sprintf("%v-%v", options.ScanID, utils.GenHash(captureFile)[:6])
	if options.Target.URL == "" {
		options.Target.URL = observations[0].Exchange.Request.URL
	}
	utils.InforF("Loaded %v observations from %v", len(observations), captureFile)

	session := core.NewSession(options)
	session.SetChannel(core.NewDirectChannel(options, session))
	core.Feed(session, observations)

	verdict := session.Analyze(ctx)
	core.Background(options, verdict)
	return verdict, nil
}

// AnalyzeHelp print help message
func AnalyzeHelp(cmd *cobra.Command, _ []string) {
	fmt.Println(libs.Banner())
	fmt.Println(cmd.UsageString())
	h := "\nExamples:\n"
	h += "  qrlchecker analyze -u https://example.com/login -q 'https://example.com/qr?uuid=abc123' -C login.har\n"
	h += "  qrlchecker analyze --target-config target.json -C capture.txt --app-marker MyApp\n"
	h += "  qrlchecker analyze -F captures.txt -c 10 --json\n"
	fmt.Println(h)
}
