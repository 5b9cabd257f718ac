package reader

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVReaderInfersTypes(t *testing.T) {
	source := io.NopCloser(strings.NewReader(
		"name,age,score,active,note\n" +
			"alice,30,1.5,true,hello\n" +
			"bob,,2.0,false,\n"))

	r := NewCSVReader(source, 10)
	defer r.Close()

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "score", "active", "note"}, chunk.Columns())
	assert.Equal(t, 2, chunk.NumRows())

	assert.Equal(t, []interface{}{"alice", "bob"}, chunk.Series("name").Values)
	assert.Equal(t, []interface{}{int64(30), nil}, chunk.Series("age").Values)
	assert.Equal(t, []interface{}{1.5, 2.0}, chunk.Series("score").Values)
	assert.Equal(t, []interface{}{true, false}, chunk.Series("active").Values)
	assert.Equal(t, []interface{}{"hello", nil}, chunk.Series("note").Values)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCSVReaderChunks(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("value\n")
	for i := 0; i < 5; i++ {
		sb.WriteString("1\n")
	}

	r := NewCSVReader(io.NopCloser(strings.NewReader(sb.String())), 2)
	defer r.Close()

	var sizes []int
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, chunk.NumRows())
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestCSVReaderShortRecordPadsWithNulls(t *testing.T) {
	source := io.NopCloser(strings.NewReader("a,b\n1\n"))

	r := NewCSVReader(source, 10)
	defer r.Close()

	chunk, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1)}, chunk.Series("a").Values)
	assert.Equal(t, []interface{}{nil}, chunk.Series("b").Values)
}

func TestCSVReaderEmptyFile(t *testing.T) {
	r := NewCSVReader(io.NopCloser(strings.NewReader("")), 10)
	defer r.Close()

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}
