package json

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Strategy string  `json:"strategy"`
	Loops    int     `json:"loops"`
	NsPerOp  float64 `json:"ns_per_op"`
	Note     string  `json:"note,omitempty"`
}

func TestMarshalToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, sample{Strategy: "heap", Loops: 3, NsPerOp: 1.5}, ""))
	assert.Equal(t, `{"strategy":"heap","loops":3,"ns_per_op":1.5}`+"\n", buf.String())

	buf.Reset()
	require.NoError(t, MarshalToWriter(&buf, sample{Strategy: "<b>"}, "  "))
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"strategy\": \"<b>\""))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestMarshalToWriter_WriteError(t *testing.T) {
	assert.Error(t, MarshalToWriter(failingWriter{}, sample{}, ""))
	assert.Error(t, MarshalToWriter(&bytes.Buffer{}, make(chan int), ""))
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(sample{Strategy: "blockpool", Loops: 10})
	require.NoError(t, err)

	var got sample
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, "blockpool", got.Strategy)
	assert.Equal(t, 10, got.Loops)

	indented, err := MarshalIndent(got, "", "\t")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n\t\"loops\": 10")
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("dirty")
	PutBuffer(buf)
	assert.Equal(t, 0, GetBuffer().Len())

	big := bytes.NewBuffer(make([]byte, 0, 2*1024*1024))
	PutBuffer(big)
}
