package store

import (
	"context"
	"errors"
	"testing"

	"auticare/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	corpus string
	limit  int
	vec    []float32
	chunks []types.Chunk
	err    error
}

func (f *fakeDB) SaveDocument(context.Context, types.Document) error { return nil }
func (f *fakeDB) GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error) {
	return nil, ErrDocumentNotFound
}
func (f *fakeDB) SaveChunk(context.Context, types.Chunk) error { return nil }
func (f *fakeDB) DeleteChunksByDocID(context.Context, uuid.UUID) error { return nil }
func (f *fakeDB) ReplaceDocument(context.Context, types.Document, []types.Chunk) error {
	return nil
}
func (f *fakeDB) DeleteCorpus(context.Context, string) error { return nil }
func (f *fakeDB) CountChunks(context.Context, string) (int, error) { return len(f.chunks), nil }

func (f *fakeDB) Search(_ context.Context, corpus string, vec []float32, limit int) ([]types.Chunk, error) {
	f.corpus, f.vec, f.limit = corpus, vec, limit
	return f.chunks, f.err
}

type constEmbedder struct {
	vec []float32
	err error
}

func (c constEmbedder) Embed(string) ([]float32, error) { return c.vec, c.err }

func TestVectorIndexSearch(t *testing.T) {
	db := &fakeDB{chunks: []types.Chunk{
		{Content: "Early signs of autism", Distance: 0.9},
		{Content: "Speech therapy", Distance: 0.4},
	}}
	idx := NewVectorIndex(db, constEmbedder{vec: []float32{1, 0}}, "knowledge")

	got, err := idx.Search(context.Background(), "signs", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Early signs of autism", "Speech therapy"}, got)
	assert.Equal(t, "knowledge", db.corpus)
	assert.Equal(t, 3, db.limit)
	assert.Equal(t, []float32{1, 0}, db.vec)
}

func TestVectorIndexErrors(t *testing.T) {
	idx := NewVectorIndex(&fakeDB{}, constEmbedder{err: errors.New("ollama down")}, "records")
	_, err := idx.Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "embed query")

	idx = NewVectorIndex(&fakeDB{err: errors.New("pool closed")}, constEmbedder{vec: []float32{1}}, "records")
	_, err = idx.Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "pool closed")
}
