package core

import (
	"bytes"
	"fmt"
	"path"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

// DefaultReportTemplate markdown layout of the detection report
const DefaultReportTemplate = `# QRLogin Security Detection Report
Detection Report for {{ .Target }}
Detection Time: {{ .Time }}

## Detected Flaws
{{- range .Detected }}
Flaw-{{ add1 .Index }}. {{ .Name }}
{{- else }}
  No flaws detected.
{{- end }}

## Mitigation Suggestions
{{- range .Detected }}
{{ .Mitigation }}
{{- else }}
No suggestions, as no flaws were detected.
{{- end }}
{{- if .Indeterminate }}

## Indeterminate Probes
{{- range .Indeterminate }}
- {{ .Code }} {{ .Name }}: {{ .Reason }}
{{- end }}
{{- end }}
`

// ReportFlaw one flaw line of the report
type ReportFlaw struct {
	Index      int
	Code       string
	Name       string
	Mitigation string
	Reason     string
}

// ReportData data passed to the report template
type ReportData struct {
	Target        string
	Time          string
	Version       string
	Detected      []ReportFlaw
	Indeterminate []ReportFlaw
	Verdict       libs.Verdict
}

// ReportFolder folder of markdown reports
func ReportFolder(options libs.Options) string {
	if options.Report.ReportFolder != "" {
		return options.Report.ReportFolder
	}
	return path.Join(options.Output, "reports")
}

// NewReportData collect what the template needs from a verdict
func NewReportData(verdict libs.Verdict, when time.Time) ReportData {
	data := ReportData{
		Target:  verdict.Target,
		Time:    when.Format("2006-01-02 15:04:05"),
		Version: libs.VERSION,
		Verdict: verdict,
	}
	for i, r := range verdict.Results {
		item := ReportFlaw{
			Index:      i,
			Code:       r.Flaw.Code(),
			Name:       r.Flaw.Name(),
			Mitigation: r.Flaw.Mitigation(),
			Reason:     r.Reason,
		}
		switch r.Status {
		case libs.StatusPresent:
			data.Detected = append(data.Detected, item)
		case libs.StatusIndeterminate:
			data.Indeterminate = append(data.Indeterminate, item)
		}
	}
	return data
}

// RenderReport render a verdict with the given template, blank means the default one
func RenderReport(tmpl string, data ReportData) (string, error) {
	if tmpl == "" {
		tmpl = DefaultReportTemplate
	}
	t, err := template.New("report").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := t.Execute(buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// GenReport generate the markdown report of a verdict
func GenReport(options libs.Options, verdict libs.Verdict) (string, error) {
	var tmpl string
	if options.Report.TemplateFile != "" {
		tmpl = utils.GetFileContent(options.Report.TemplateFile)
		if tmpl == "" {
			return "", fmt.Errorf("blank template file %v", options.Report.TemplateFile)
		}
	}
	result, err := RenderReport(tmpl, NewReportData(verdict, time.Now()))
	if err != nil {
		return "", err
	}

	name := options.Report.ReportName
	if name == "" {
		name = fmt.Sprintf("report_%v.md", utils.EscapeName(verdict.Target))
	}
	p := path.Join(ReportFolder(options), name)
	utils.DebugF("Writing report to: %v", p)
	return utils.WriteToFile(p, result)
}
