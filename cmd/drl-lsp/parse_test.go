package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = "package org.acme\n\nrule \"Adult\"\nwhen\n    $p : Person( age >= 18 )\nthen\n    System.out.println($p);\nend\n"

const brokenRule = "rule \"A\"\nwhen\n    Person()\nthen\n    x();\n"

func writeDRL(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.drl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunParse_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := runParse([]string{writeDRL(t, validRule)}, formatJSON, true, nil, nil, &buf)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	ast, ok := out["ast"].(map[string]any)
	require.True(t, ok)
	rules, ok := ast["rules"].([]any)
	require.True(t, ok)
	require.Len(t, rules, 1)
	assert.Equal(t, "Adult", rules[0].(map[string]any)["name"])
	assert.Empty(t, out["errors"])
}

func TestRunParse_YAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := runParse([]string{writeDRL(t, brokenRule)}, formatYAML, false, nil, nil, &buf)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "name: A")
	assert.Contains(t, buf.String(), "code: missing-end")
	assert.Contains(t, buf.String(), "severity: error")
}

func TestRunParse_Diagnostics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := runParse([]string{"-"}, formatDiagnostics, false, nil, strings.NewReader(brokenRule), &buf)
	require.NoError(t, err)
	assert.Equal(t, "-:1:1: error: rule \"A\": missing 'end' [missing-end]\n", buf.String())
}

func TestRunParse_Strict(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := runParse([]string{writeDRL(t, brokenRule)}, formatDiagnostics, true, nil, nil, &buf)
	require.ErrorIs(t, err, ErrProblemsFound)
}

func TestRunParse_Errors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := runParse([]string{"rules.drl"}, "xml", false, nil, nil, &buf)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	err = runParse([]string{filepath.Join(t.TempDir(), "absent.drl")}, formatJSON, false, nil, nil, &buf)
	require.ErrorIs(t, err, os.ErrNotExist)
}
