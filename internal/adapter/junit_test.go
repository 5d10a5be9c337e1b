package adapter

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

func TestJUnitWriterRendersFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")

	findings := []m.Finding{
		{
			Victim:    "tests/test_cart.py::test_total",
			Polluters: []m.TestID{"tests/test_auth.py::test_login", "tests/test_auth.py::test_refresh"},
			StateChanges: []m.StateChange{
				{Kind: m.EnvChanged, Key: "SESSION", Old: "a", New: "b"},
			},
		},
		{
			Victim:    "tests/test_cart.py::test_empty",
			Polluters: []m.TestID{"tests/test_auth.py::test_login"},
		},
	}

	require.NoError(t, JUnitWriter{}.Write(path, findings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc jUnitXMLDocument
	require.NoError(t, xml.Unmarshal(data, &doc))

	require.Len(t, doc.Suites, 1)
	suite := doc.Suites[0]
	assert.Equal(t, "FlakyFence pollution analysis", suite.Name)
	assert.Equal(t, 2, suite.Tests)
	assert.Equal(t, 2, suite.Failures)

	require.Len(t, suite.TestCases, 2)
	first := suite.TestCases[0]
	assert.Equal(t, "tests/test_cart.py::test_total", first.Name)
	require.NotNil(t, first.Failure)
	assert.Contains(t, first.Failure.Message, "tests/test_auth.py::test_login")
	assert.Contains(t, first.Failure.Message, "tests/test_auth.py::test_refresh")
	assert.Contains(t, first.Failure.Contents, "SESSION")
	assert.Equal(t, "test-pollution", first.Failure.Type)
}

func TestJUnitWriterEmptyFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")

	require.NoError(t, JUnitWriter{}.Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc jUnitXMLDocument
	require.NoError(t, xml.Unmarshal(data, &doc))

	require.Len(t, doc.Suites, 1)
	assert.Zero(t, doc.Suites[0].Tests)
	assert.Zero(t, doc.Suites[0].Failures)
	assert.Empty(t, doc.Suites[0].TestCases)
}

func TestDescribeChangesCoversEveryKind(t *testing.T) {
	text := describeChanges([]m.StateChange{
		{Kind: m.EnvAdded, Key: "A", Value: "1"},
		{Kind: m.EnvRemoved, Key: "B"},
		{Kind: m.EnvChanged, Key: "C", Old: "x", New: "y"},
		{Kind: m.ModuleAdded, Module: "pkg.leaky"},
	})

	assert.Contains(t, text, "env_added A=1")
	assert.Contains(t, text, "env_removed B")
	assert.Contains(t, text, "env_changed C: x -> y")
	assert.Contains(t, text, "module_added pkg.leaky")
}
