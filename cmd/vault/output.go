package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/suinrdeveloper-dev/vault"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error, ensuring the API key is never echoed.
func (a *app) outputError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", a.scrubSensitiveData(err.Error()))
}

func (a *app) scrubSensitiveData(msg string) string {
	if key := a.cfg.APIKey; key != "" && strings.Contains(msg, key) {
		msg = strings.ReplaceAll(msg, key, "[REDACTED]")
	}
	return msg
}

func (a *app) outputRecords(cmd *cobra.Command, records []vault.SyncedRecord) error {
	if a.outputJSON {
		if records == nil {
			records = []vault.SyncedRecord{}
		}
		return outputAsJSON(cmd, records)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d records:\n\n", len(records))
	for i := range records {
		writeRecordLine(out, &records[i])
	}
	return nil
}

func writeRecordLine(out io.Writer, r *vault.SyncedRecord) {
	fmt.Fprintf(out, "[%s] %s  %s\n", styled(idStyle, r.RemoteID), r.SourceLabel, styled(mutedStyle, r.CreatedAt))
	fmt.Fprintf(out, "    %s\n", r.Header)
	if r.Payload != "" {
		fmt.Fprintf(out, "    %s\n", oneLine(r.Payload, 120))
	}
}

func (a *app) outputRecord(cmd *cobra.Command, r *vault.SyncedRecord) error {
	if a.outputJSON {
		return outputAsJSON(cmd, r)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Remote ID:  %s\n", r.RemoteID)
	fmt.Fprintf(out, "Local ID:   %d\n", r.LocalID)
	fmt.Fprintf(out, "Source:     %s\n", r.SourceLabel)
	fmt.Fprintf(out, "Header:     %s\n", r.Header)
	fmt.Fprintf(out, "Created:    %s\n", r.CreatedAt)
	fmt.Fprintf(out, "Synced:     %s\n", r.SyncedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Artifact:   %s\n", r.ArtifactPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderPayload(r.Payload))
	return nil
}

// cycleOutput is the JSON shape of a sync cycle.
type cycleOutput struct {
	CycleID      string `json:"cycle_id"`
	Fetched      int    `json:"fetched"`
	Synced       int    `json:"synced"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	DeleteFailed int    `json:"delete_failed"`
	Interrupted  bool   `json:"interrupted,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

func (a *app) outputCycle(cmd *cobra.Command, result *vault.CycleResult) error {
	if a.outputJSON {
		out := cycleOutput{
			CycleID:      result.CycleID,
			Fetched:      result.Fetched,
			Synced:       result.Synced,
			Skipped:      result.Skipped,
			Failed:       result.Failed,
			DeleteFailed: result.DeleteFailed,
			Interrupted:  result.Interrupted,
			DurationMs:   result.Duration.Milliseconds(),
		}
		if result.Err != nil {
			out.Error = a.scrubSensitiveData(result.Err.Error())
		}
		return outputAsJSON(cmd, out)
	}

	out := cmd.OutOrStdout()
	if result.Err != nil {
		return nil
	}
	if result.Fetched == 0 {
		fmt.Fprintln(out, "Nothing pending in the remote queue.")
		return nil
	}
	printSuccess(out, "Cycle %s complete (took %s)", result.CycleID, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Fetched: %d  %s\n", result.Fetched, result.Summary())
	if result.DeleteFailed > 0 {
		printWarning(out, "Not acknowledged remotely: %d (will be re-delivered)", result.DeleteFailed)
	}
	for _, o := range result.Outcomes {
		switch {
		case o.Outcome == vault.OutcomeFailed:
			printFailure(out, "%s: %s", o.RemoteID, a.scrubSensitiveData(o.Err.Error()))
		case o.Err != nil:
			printWarning(out, "%s skipped: %s", o.RemoteID, a.scrubSensitiveData(o.Err.Error()))
		}
	}
	return nil
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
