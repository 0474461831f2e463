package cmd

import (
	"fmt"
	"os"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration CLI",
		Long:  `Show the effective configuration, manage api credentials and stored verdicts`,
		RunE:  runConfig,
	}
	configCmd.Flags().StringP("action", "a", "show", "Action: show, cred, clean")
	// used for cred action
	configCmd.Flags().String("user", "", "Username")
	configCmd.Flags().String("pass", "", "Password")
	configCmd.Flags().Bool("hh", false, "More helper")
	RootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	// print more help
	helps, _ := cmd.Flags().GetBool("hh")
	if helps {
		HelperConfig()
		os.Exit(1)
	}
	action, _ := cmd.Flags().GetString("action")

	switch action {
	case "show":
		fmt.Printf("Root folder: %v\n", options.RootFolder)
		fmt.Printf("Config file: %v\n", options.ConfigFile)
		fmt.Printf("Done flag: %v\n", options.DoneFlag)
		fmt.Printf("App marker: %v\n", options.AppMarker)
		fmt.Printf("Api bind: %v\n", options.Server.Bind)
		fmt.Printf("Replay timeout: %vs, refresh: %vs\n", options.ReplayTimeout, options.Refresh)
		fmt.Printf("Token field: %v\n", options.Target.TokenField)
		fmt.Printf("Polling url: %v\n", options.Target.PollingURL)
		for _, s := range options.Secrets {
			fmt.Printf("Secret: %v\n", s.Label)
		}
	// create or update user
	case "cred":
		username, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("pass")
		if username == "" || password == "" {
			return fmt.Errorf("cred action needs --user and --pass")
		}
		database.CreateUser(username, password)
		utils.GoodF("Create new credentials %v:%v \n", username, password)
	// clean all the things
	case "clean":
		database.CleanVerdicts()
		utils.GoodF("Cleaned stored verdicts")
	default:
		return fmt.Errorf("unknown action %v", action)
	}
	return nil
}

// HelperConfig print more help
func HelperConfig() {
	fmt.Println(libs.Banner())
	h := "\nConfig Command example:\n\n"
	h += "  qrlchecker config -a show\n"
	h += "  qrlchecker config -a cred --user sample --pass not123456\n"
	h += "  qrlchecker config -a clean\n\n"
	h += color.HiCyanString("Files in the root folder:\n")
	h += "  config.yaml       api settings, polling interval, replay timeout and the config-driven target fields\n"
	h += "  credentials.yaml  secret labels and values of the scanning account, e.g. phone_num and id_card\n"
	h += "  sqlite.db         stored verdicts\n"
	h += fmt.Sprintf("\nDefault locale constants: %v\n", core.DefaultLocaleConstants)
	fmt.Print(h)
}
