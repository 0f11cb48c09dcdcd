package cli

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/fluoric/internal/intelligence/descriptors"
	"github.com/turtacn/fluoric/pkg/errors"
)

const cf3Benzene = "FC(F)(F)c1ccccc1"

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPredict_CSVFromFile(t *testing.T) {
	path := writeInput(t, "name,SMILES\nbenzotrifluoride,"+cf3Benzene+"\nethanol,CCO\n")

	out, _, err := executeCommand(t, "", "predict", "logp", "--input", path, "-o", "csv")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"SMILES", "logP"}, records[0])
	assert.Equal(t, cf3Benzene, records[1][0])
	assert.Equal(t, "CCO", records[2][0])

	v, err := strconv.ParseFloat(records[1][1], 64)
	require.NoError(t, err)
	assert.Greater(t, v, 2.0)
	assert.Less(t, v, 4.5)
}

func TestPredict_StdinJSON(t *testing.T) {
	out, _, err := executeCommand(t, "SMILES\nOC(=O)C(F)(F)F\n", "predict", "PKA", "-o", "json")
	require.NoError(t, err)

	var got struct {
		BatchID  string                   `json:"batch_id"`
		Property string                   `json:"property"`
		Columns  []string                 `json:"columns"`
		Rows     []map[string]interface{} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.BatchID)
	assert.Equal(t, "pKa", got.Property)
	assert.Equal(t, []string{"SMILES", "pKa"}, got.Columns)
	require.Len(t, got.Rows, 1)
	assert.Less(t, got.Rows[0]["pKa"].(float64), 2.0)
}

func TestPredict_TableAndText(t *testing.T) {
	out, _, err := executeCommand(t, "SMILES\nCCO\n", "predict", "logp", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "SMILES")
	assert.Contains(t, out, "CCO")

	out, _, err = executeCommand(t, "SMILES\nCCO\n", "predict", "logp")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "SMILES\tlogP", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "CCO\t"))
}

func TestPredict_OutputFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.csv")
	out, stderr, err := executeCommand(t, "SMILES\nCCO\nCCCC(F)(F)F\n", "predict", "logp", "--out", dest)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "wrote "+dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "SMILES,logP\nCCO,"))
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestPredict_Failures(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		code    errors.ErrorCode
		message string
	}{
		{"missing column", "smiles\nCCO\n", []string{"predict", "logp"}, errors.ErrCodeSchema, "The table does not contain the column 'SMILES'."},
		{"null smiles", "SMILES\nCCO\nNaN\n", []string{"predict", "logp"}, errors.ErrCodeMissingValue, "SMILES cannot be NaN."},
		{"invalid smiles", "SMILES\nCCO\nnot_a_smiles\nCCC\n", []string{"predict", "pka"}, errors.ErrCodeInvalidSMILES, "Inappropriate SMILES format: not_a_smiles"},
		{"unknown property", "SMILES\nCCO\n", []string{"predict", "logd"}, errors.ErrCodeBadRequest, "unsupported property"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := executeCommand(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestPredict_MissingInputFile(t *testing.T) {
	_, _, err := executeCommand(t, "", "predict", "logp", "--input", filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestPredict_RequiresProperty(t *testing.T) {
	_, _, err := executeCommand(t, "", "predict")
	assert.Error(t, err)
}

func TestFeatures(t *testing.T) {
	out, _, err := executeCommand(t, "", "features", "--smiles", "OC(=O)C(F)(F)F", "--property", "pka", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Model    string             `json:"model"`
		Property string             `json:"property"`
		Features map[string]float64 `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "pKa", got.Property)
	assert.NotEmpty(t, got.Model)
	assert.Equal(t, 1.0, got.Features[descriptors.CF3GroupCount])

	_, _, err = executeCommand(t, "", "features", "--smiles", "C1CC")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSMILES))

	_, _, err = executeCommand(t, "", "features")
	assert.Error(t, err)
}
