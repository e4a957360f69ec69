package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type rows [][]string

func (rows) Headers() []string { return []string{"Name", "Uid"} }
func (r rows) Rows() [][]string { return r }

type item struct {
	Name string `json:"name" yaml:"name"`
	UID  uint32 `json:"uid" yaml:"uid"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" JSON ", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, rows{{"alice", "2000"}, {"bob", "2001"}}))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "UID")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "2001")
}

func TestPrintTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, item{Name: "alice", UID: 2000}))

	var got item
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, item{Name: "alice", UID: 2000}, got)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatYAML, []item{{Name: "alice", UID: 2000}}))

	var got []item
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []item{{Name: "alice", UID: 2000}}, got)
}

func TestPrintUnknownFormat(t *testing.T) {
	assert.Error(t, Print(&bytes.Buffer{}, Format("xml"), nil))
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{{"Local", "alice_local"}, {"UID", "2000"}}))
	assert.Contains(t, buf.String(), "alice_local")
	assert.Contains(t, buf.String(), "Local")
}

func TestEmptyOr(t *testing.T) {
	assert.Equal(t, "-", EmptyOr("", "-"))
	assert.Equal(t, "x", EmptyOr("x", "-"))
}
