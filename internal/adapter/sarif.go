package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// FindingWriter renders findings to a file in one report format.
type FindingWriter interface {
	Write(path string, findings []m.Finding) error
}

const (
	sarifSchema   = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion  = "2.1.0"
	toolName      = "FlakyFence"
	ruleID        = "test-pollution"
	ruleShortText = "Test pollution detected"

	// Reported as the driver version when the build carries none.
	fallbackVersion = "0.1.0"
)

// Struct definitions for the slice of the SARIF 2.1.0 schema the tool
// emits; code-scanning uploads only need this much.

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string    `json:"id"`
	ShortDescription sarifText `json:"shortDescription"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	Level      string          `json:"level"`
	Message    sarifText       `json:"message"`
	Properties sarifProperties `json:"properties"`
}

type sarifProperties struct {
	StateChanges []m.StateChange `json:"stateChanges"`
}

// SarifWriter renders findings as a SARIF 2.1.0 document.
type SarifWriter struct {
	// ToolVersion is reported as the driver version.
	ToolVersion string
}

// Write implements FindingWriter.
func (w SarifWriter) Write(path string, findings []m.Finding) error {
	data, err := json.MarshalIndent(sarifFromFindings(findings, w.ToolVersion), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding SARIF report: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing SARIF report: %w", err)
	}
	return nil
}

func sarifFromFindings(findings []m.Finding, version string) sarifLog {
	if version == "" {
		version = fallbackVersion
	}

	results := []sarifResult{}
	for _, finding := range findings {
		changes := finding.StateChanges
		if changes == nil {
			changes = []m.StateChange{}
		}
		results = append(results, sarifResult{
			RuleID: ruleID,
			Level:  "error",
			Message: sarifText{
				Text: fmt.Sprintf("%s polluted by %s", finding.Victim, strings.Join(m.Strings(finding.Polluters), ", ")),
			},
			Properties: sarifProperties{StateChanges: changes},
		})
	}

	return sarifLog{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:    toolName,
					Version: version,
					Rules: []sarifRule{{
						ID:               ruleID,
						ShortDescription: sarifText{Text: ruleShortText},
					}},
				},
			},
			Results: results,
		}},
	}
}
