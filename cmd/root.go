package cmd

import (
	"fmt"
	"os"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var options = libs.Options{}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "qrlchecker",
	Short: "QR login flaw checker",
	Long:  fmt.Sprintf(`QRLChecker - Differential replay analysis of QR code login flows - %v by %v`, libs.VERSION, libs.AUTHOR),
}

// Execute main function
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&options.ConfigFile, "config", "", "config file (default is $HOME/.qrlchecker/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&options.RootFolder, "rootDir", libs.DEFAULTFOLDER, "root Project")
	RootCmd.PersistentFlags().StringVar(&options.ScanID, "scanID", "", "Scan ID")
	RootCmd.PersistentFlags().StringVarP(&options.Output, "output", "o", "out", "output folder name")
	RootCmd.PersistentFlags().StringVar(&options.LogFile, "log-file", "", "also write log to this file")

	RootCmd.PersistentFlags().StringVar(&options.Proxy, "proxy", "", "proxy")
	RootCmd.PersistentFlags().IntVar(&options.Timeout, "timeout", 10, "HTTP timeout")
	RootCmd.PersistentFlags().IntVar(&options.ReplayTimeout, "replay-timeout", 0, "Seconds to wait for a replay response (default from config)")
	RootCmd.PersistentFlags().IntVar(&options.Refresh, "refresh", 0, "Seconds between two done flag checks (default from config)")
	RootCmd.PersistentFlags().IntVar(&options.Retry, "retry", 0, "retry")
	RootCmd.PersistentFlags().IntVarP(&options.Concurrency, "concurrency", "c", 5, "concurrency")

	RootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false, "Verbose")
	RootCmd.PersistentFlags().BoolVar(&options.Debug, "debug", false, "Debug, also records traffic")
	RootCmd.PersistentFlags().BoolVar(&options.NoDB, "no-db", false, "Do not store verdicts")
	RootCmd.PersistentFlags().BoolVar(&options.NoOutput, "no-output", false, "Do not write result and report files")

	// target
	RootCmd.PersistentFlags().StringVarP(&options.Target.URL, "url", "u", "", "URL of the login page under test")
	RootCmd.PersistentFlags().StringVarP(&options.Target.QRPayload, "qr", "q", "", "Decoded QR code text")
	RootCmd.PersistentFlags().String("qr-file", "", "File holding the decoded QR code text")
	RootCmd.PersistentFlags().String("target-config", "", "JSON file with qrid_name, polling_url and polling response format")
	RootCmd.PersistentFlags().StringVar(&options.AppMarker, "app-marker", "", "User-Agent substring of the mobile app")
	RootCmd.PersistentFlags().StringVar(&options.DoneFlag, "done-flag", "", "File whose existence marks the login as done")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if options.Debug {
		options.Verbose = true
	}
	utils.InitLog(&options)
	options.RootFolder, _ = homedir.Expand(options.RootFolder)
	options.Output = utils.NormalizePath(options.Output)

	if qrFile, _ := RootCmd.PersistentFlags().GetString("qr-file"); qrFile != "" && options.Target.QRPayload == "" {
		options.Target.QRPayload = utils.GetFileContent(qrFile)
	}
	if targetConfig, _ := RootCmd.PersistentFlags().GetString("target-config"); targetConfig != "" {
		if err := core.LoadTargetJSON(targetConfig, &options.Target); err != nil {
			utils.ErrorF("Error loading target config %v: %v", targetConfig, err)
		}
	}
	core.InitConfig(&options)
	if options.ScanID == "" {
		options.ScanID = utils.GenHash(fmt.Sprintf("%v-%v", options.Target.URL, utils.GetTS()))[:16]
	}
	utils.DebugF("Options: %+v", options)
}
