package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// cspReport is the body browsers post to the report-uri of the Content-Security-Policy.
type cspReport struct {
	Report struct {
		DocumentURI       string `json:"document-uri"`
		ViolatedDirective string `json:"violated-directive"`
		BlockedURI        string `json:"blocked-uri"`
		SourceFile        string `json:"source-file"`
		LineNumber        int    `json:"line-number"`
		ScriptSample      string `json:"script-sample"`
	} `json:"csp-report"`
}

const maxCSPReportBytes = 64 * 1024

// cspViolation logs a CSP violation reported by the browser.
func (app *application) cspViolation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCSPReportBytes))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	var report cspReport
	if err = json.Unmarshal(body, &report); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "unparseable CSP report", slog.Int("bytes", len(body)))
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelWarn, "CSP violation detected",
		slog.String("document_uri", report.Report.DocumentURI),
		slog.String("violated_directive", report.Report.ViolatedDirective),
		slog.String("blocked_uri", report.Report.BlockedURI),
		slog.String("source_file", report.Report.SourceFile),
		slog.Int("line_number", report.Report.LineNumber),
		slog.String("script_sample", report.Report.ScriptSample))
	w.WriteHeader(http.StatusNoContent)
}
