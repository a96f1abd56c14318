package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssemble_JoinsInOrder(t *testing.T) {
	out := Assemble([]string{"first", "second", "third"}, 100)
	require.Equal(t, "first\n\nsecond\n\nthird", out)
}

func TestAssemble_CutsAtLastSentence(t *testing.T) {
	chunks := []string{"One sentence. Two sentence.", strings.Repeat("z", 50)}
	out := Assemble(chunks, 40)
	require.Equal(t, "One sentence. Two sentence.", out)
}

func TestAssemble_HardCutWithoutTerminatorInWindow(t *testing.T) {
	// the only '.' sits before the sentence window and is ignored
	text := "a." + strings.Repeat("b", 60000)
	out := Assemble([]string{text}, 50000)
	require.Len(t, []rune(out), 50000)
	require.True(t, strings.HasSuffix(out, "b"))
}

func TestAssemble_TerminatorInsideWindow(t *testing.T) {
	text := strings.Repeat("a", 45000) + "." + strings.Repeat("b", 10000)
	out := Assemble([]string{text}, 50000)
	require.Equal(t, 45001, len([]rune(out)))
	require.True(t, strings.HasSuffix(out, "."))
}

func TestAssemble_Idempotent(t *testing.T) {
	chunks := []string{strings.Repeat("Sentence here. ", 5000)}
	once := Assemble(chunks, 50000)
	require.LessOrEqual(t, len([]rune(once)), 50000)
	require.Equal(t, once, Assemble([]string{once}, 50000))
}

func TestAssemble_CountsRunes(t *testing.T) {
	text := strings.Repeat("é", 30)
	require.Equal(t, text, Assemble([]string{text}, 30))
	require.Len(t, []rune(Assemble([]string{text}, 10)), 10)
}
