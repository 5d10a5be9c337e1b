package adapter

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// Struct definitions for the JUnit XML schema - see
// https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName   xml.Name           `xml:"testsuite"`
	Tests     int                `xml:"tests,attr"`
	Failures  int                `xml:"failures,attr"`
	Name      string             `xml:"name,attr"`
	TestCases []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName   xml.Name         `xml:"testcase"`
	Classname string           `xml:"classname,attr"`
	Name      string           `xml:"name,attr"`
	Failure   *jUnitXMLFailure `xml:"failure,omitempty"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// JUnitWriter renders findings as a JUnit XML document so pollution
// results can ride the same CI dashboards as ordinary test results. Each
// finding becomes one failed test case named after the victim.
type JUnitWriter struct{}

// Write implements FindingWriter.
func (w JUnitWriter) Write(path string, findings []m.Finding) error {
	suite := jUnitXMLTestSuite{
		Name:     "FlakyFence pollution analysis",
		Tests:    len(findings),
		Failures: len(findings),
	}

	for _, finding := range findings {
		polluters := strings.Join(m.Strings(finding.Polluters), ", ")
		suite.TestCases = append(suite.TestCases, jUnitXMLTestCase{
			Classname: toolName,
			Name:      string(finding.Victim),
			Failure: &jUnitXMLFailure{
				Message:  fmt.Sprintf("polluted by: %s", polluters),
				Type:     ruleID,
				Contents: describeChanges(finding.StateChanges),
			},
		})
	}

	doc := jUnitXMLDocument{Suites: []jUnitXMLTestSuite{suite}}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JUnit report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing JUnit report: %w", err)
	}
	return nil
}

func describeChanges(changes []m.StateChange) string {
	if len(changes) == 0 {
		return ""
	}

	var lines []string
	for _, change := range changes {
		switch change.Kind {
		case m.EnvAdded:
			lines = append(lines, fmt.Sprintf("%s %s=%s", change.Kind, change.Key, change.Value))
		case m.EnvRemoved:
			lines = append(lines, fmt.Sprintf("%s %s", change.Kind, change.Key))
		case m.EnvChanged:
			lines = append(lines, fmt.Sprintf("%s %s: %s -> %s", change.Kind, change.Key, change.Old, change.New))
		case m.ModuleAdded:
			lines = append(lines, fmt.Sprintf("%s %s", change.Kind, change.Module))
		}
	}
	return strings.Join(lines, "\n")
}
