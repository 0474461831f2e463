package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/server"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/spf13/cobra"
)

func init() {
	var serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start ingest API server for an intercepting proxy",
		Long:  libs.Banner(), RunE: runServer,
	}
	serverCmd.Flags().String("host", "", "IP address to bind the server (default from config)")
	serverCmd.Flags().String("port", "", "Port (default from config)")
	serverCmd.Flags().BoolVar(&options.Server.NoAuth, "no-auth", false, "Disable authentication for the api")
	RootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, _ []string) error {
	if options.Target.URL == "" {
		return fmt.Errorf("missing target url, use -u")
	}
	// prepare DB stuff
	if !options.NoDB && options.Server.Username != "" {
		database.CreateUser(options.Server.Username, options.Server.Password)
	}

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetString("port")
	if host != "" || port != "" {
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "5000"
		}
		options.Server.Bind = fmt.Sprintf("%v:%v", host, port)
	}
	// a stale flag would end the capture right away
	core.FileSignal{Path: options.DoneFlag}.Reset()
	utils.InforF("Mark the login as done with POST /api/done or by creating %v", options.DoneFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return server.NewServer(options).Run(ctx)
}
