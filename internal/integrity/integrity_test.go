package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256ChunksMatchesWholeFile(t *testing.T) {
	chunks := [][]byte{[]byte("hello "), []byte("world")}
	whole := []byte("hello world")
	assert.Equal(t, SHA256(whole), SHA256Chunks(chunks))
}

func TestSHA256DifferentInputsDiffer(t *testing.T) {
	assert.NotEqual(t, SHA256([]byte("a")), SHA256([]byte("b")))
}
