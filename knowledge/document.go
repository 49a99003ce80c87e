package knowledge

import (
	"auticare/loader"
	"auticare/types"
)

// Document is the reference text loaded once at startup.
type Document struct {
	Text   string
	Chunks []types.KnowledgeChunk
}

type LoadOptions struct {
	Crop         loader.Crop
	ChunkSize    int
	MinChunkSize int
}

// Load reads a PDF or plain-text document.
func Load(path string, opts LoadOptions) (*Document, error) {
	pages, err := loader.ReadPages(path, opts.Crop)
	if err != nil {
		return nil, err
	}
	return FromPages(pages, opts.ChunkSize, opts.MinChunkSize), nil
}

func FromPages(pages []string, chunkSize, minChunkSize int) *Document {
	return &Document{
		Text:   loader.JoinPages(pages),
		Chunks: loader.ChunkPages(pages, chunkSize, minChunkSize, loader.KnowledgeSource),
	}
}

func (d *Document) Empty() bool {
	return d == nil || d.Text == ""
}

// Items returns the chunks in index form.
func (d *Document) Items() []types.Item {
	if d == nil {
		return nil
	}
	return loader.ChunkItems(d.Chunks)
}
