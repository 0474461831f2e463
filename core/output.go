package core

import (
	"fmt"
	"path"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/logrusorgru/aurora/v3"
)

// PrintVerdict one coloured line per flaw
func PrintVerdict(verdict libs.Verdict) {
	// use this libs because we still want to see color when piping
	au := aurora.NewAurora(true)
	for _, r := range verdict.Results {
		code := fmt.Sprintf("%s", au.Cyan(r.Flaw.Code()))
		status := fmt.Sprintf("%s", au.Green(r.Status))
		switch r.Status {
		case libs.StatusPresent:
			status = fmt.Sprintf("%s", au.Red(r.Status))
		case libs.StatusIndeterminate:
			status = fmt.Sprintf("%s", au.Yellow(r.Status))
		}
		info := fmt.Sprintf("[%s][%s] %s", code, status, r.Flaw.Name())
		if len(r.Leaked) > 0 {
			info += fmt.Sprintf(" %s", au.Magenta(strings.Join(r.Leaked, ",")))
		}
		fmt.Println(info)
	}
}

// VerdictJSON verdict as a JSON line
func VerdictJSON(verdict libs.Verdict) string {
	data, err := jsoniter.MarshalToString(verdict)
	if err != nil {
		utils.ErrorF("Error marshal verdict: %v", err)
		return ""
	}
	return data
}

// ResultFolder folder of result files
func ResultFolder(options libs.Options) string {
	if options.Report.ResultFolder != "" {
		return options.Report.ResultFolder
	}
	return path.Join(options.Output, "res")
}

// StoreResult write the token line and the boolean row of a verdict
func StoreResult(options libs.Options, verdict libs.Verdict) (string, error) {
	p := path.Join(ResultFolder(options), fmt.Sprintf("res_%v.txt", utils.EscapeName(verdict.Target)))

	var b strings.Builder
	fmt.Fprintf(&b, "qrid: \n%v: %v\n\n", verdict.TokenField, verdict.Token)
	var codes []string
	for i := 0; i < libs.FlawCount; i++ {
		codes = append(codes, libs.Flaw(i).Code())
	}
	b.WriteString(strings.Join(codes, "\t\t") + "\n")
	for _, present := range verdict.Bools() {
		if present {
			b.WriteString("True\t")
		} else {
			b.WriteString("False\t")
		}
	}
	b.WriteString("\n")
	b.WriteString(VerdictJSON(verdict))

	return utils.WriteToFile(p, b.String())
}
