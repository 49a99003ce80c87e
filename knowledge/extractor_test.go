package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = LongHeader + ". " +
	"Early signs of autism include limited eye contact and delayed speech. " +
	"Speech therapy supports communication skills. " +
	"Occupational therapy helps with sensory processing. " +
	Disclaimer + " applies to every section. " +
	"Parents often notice developmental differences before age two."

func sampleExtractor() *Extractor {
	return NewExtractor(FromPages([]string{sampleText}, 500, 50))
}

func TestExtractNoDocument(t *testing.T) {
	e := NewExtractor(nil)
	assert.Equal(t, UnavailableReply, e.Extract("what are early signs?"))
	answer, score := e.Scored("early signs")
	assert.Empty(t, answer)
	assert.Zero(t, score)

	assert.Equal(t, UnavailableReply, NewExtractor(FromPages([]string{"  "}, 500, 50)).Extract("autism"))
}

func TestExtractNoMatch(t *testing.T) {
	assert.Equal(t, NoMatchReply, sampleExtractor().Extract("zebras"))
}

func TestExtractSymptomBoost(t *testing.T) {
	got := sampleExtractor().Extract("what are the early signs?")

	assert.True(t, strings.HasPrefix(got, "Early signs of autism include"))
	assert.True(t, strings.HasSuffix(got, ConsultClosing))
	assert.NotContains(t, got, LongHeader)
	assert.NotContains(t, got, Disclaimer)
}

func TestExtractOrdersByScore(t *testing.T) {
	got := sampleExtractor().Extract("speech therapy")
	assert.True(t, strings.HasPrefix(got, "Speech therapy supports communication skills"))
	assert.Contains(t, got, "Occupational therapy")
}

func TestExtractTruncates(t *testing.T) {
	var units []string
	for i := 0; i < 8; i++ {
		units = append(units, "autism support "+strings.Repeat("word ", 50))
	}
	e := NewExtractor(FromPages([]string{strings.Join(units, ". ")}, 500, 50))

	got := strings.TrimSuffix(e.Extract("autism support"), ConsultClosing)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), 901)
}

func TestExtractFallsBackToAllUnits(t *testing.T) {
	long := "autism " + strings.Repeat("x", 400)
	got := NewExtractor(FromPages([]string{long}, 500, 50)).Extract("autism details")
	assert.True(t, strings.HasSuffix(got, ConsultClosing))
	assert.Contains(t, got, "autism")
}

func TestScored(t *testing.T) {
	e := sampleExtractor()

	answer, score := e.Scored("speech therapy")
	assert.True(t, strings.HasPrefix(answer, "Speech therapy supports"))
	assert.Equal(t, 2+1+1, score)

	answer, score = e.Scored("hi")
	assert.Empty(t, answer)
	assert.Zero(t, score)
}

func TestScrub(t *testing.T) {
	in := LongHeader + ": Autism is a spectrum. " + LongHeader + " again. " + Disclaimer
	assert.Equal(t, "Autism is a spectrum.  again.", Scrub(in))
	assert.Equal(t, "plain", Scrub("  plain "))
}

func TestCut(t *testing.T) {
	assert.Equal(t, "short", Cut("short", 10))
	assert.Equal(t, "hello…", Cut("hello world", 8))
	assert.Equal(t, "abcdefgh…", Cut("abcdefghij", 8))
}

func TestLoadText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.txt")
	require.NoError(t, os.WriteFile(path, []byte("Early   signs\nof autism. "+strings.Repeat("z", 80)), 0o644))

	doc, err := Load(path, LoadOptions{ChunkSize: 500, MinChunkSize: 50})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.Text, "Early signs of autism."))
	require.Len(t, doc.Chunks, 1)
	assert.Len(t, doc.Items(), 1)
	assert.False(t, doc.Empty())

	_, err = Load(filepath.Join(t.TempDir(), "none.pdf"), LoadOptions{})
	assert.Error(t, err)
}
