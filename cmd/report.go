package cmd

import (
	"fmt"

	"github.com/QRLogin-sec/QRLChecker/core"
	"github.com/QRLogin-sec/QRLChecker/database"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"
)

func init() {
	var reportCmd = &cobra.Command{
		Use:   "report",
		Short: "List stored verdicts or render the report of one",
		Long:  libs.Banner(),
		RunE:  runReport,
	}
	reportCmd.Flags().StringP("sid", "s", "", "Scan ID to render, list all verdicts when blank")
	reportCmd.Flags().StringP("name", "R", "", "Report name")
	reportCmd.Flags().String("template", "", "Report template file (text/template with sprig functions)")
	RootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	sid, _ := cmd.Flags().GetString("sid")
	name, _ := cmd.Flags().GetString("name")
	templateFile, _ := cmd.Flags().GetString("template")

	if options.NoDB || !database.Connected() {
		return fmt.Errorf("report needs the database")
	}
	if sid == "" {
		au := aurora.NewAurora(true)
		for _, v := range database.GetVerdicts() {
			fmt.Printf("[%s] %s %s\n", au.Cyan(v.ScanID), au.Green(v.Target), au.Red(v.Detected))
		}
		return nil
	}

	verdict, err := database.GetVerdict(sid)
	if err != nil {
		return err
	}
	options.Report.ReportName = name
	options.Report.TemplateFile = utils.NormalizePath(templateFile)
	if templateFile == "" {
		options.Report.TemplateFile = ""
	}
	core.PrintVerdict(verdict)
	p, err := core.GenReport(options, verdict)
	if err != nil {
		return err
	}
	utils.GoodF("Report generated: %v", p)
	return nil
}
