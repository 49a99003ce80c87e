package loader

import (
	"strings"

	"auticare/types"
)

const (
	DefaultChunkSize    = 500
	DefaultMinChunkSize = 50
	KnowledgeSource     = "autism_pdf"
)

// CollapseWhitespace joins all whitespace runs into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// JoinPages is the flat document text: every page whitespace-collapsed and
// joined with a space.
func JoinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if c := CollapseWhitespace(p); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// ChunkPages cuts every page into fixed windows of size characters. Windows
// whose trimmed length is not above minSize are dropped, but keep their
// position in the chunk numbering of the page.
func ChunkPages(pages []string, size, minSize int, source string) []types.KnowledgeChunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if minSize < 0 {
		minSize = DefaultMinChunkSize
	}
	var out []types.KnowledgeChunk
	for page, text := range pages {
		r := []rune(text)
		for i, n := 0, 0; i < len(r); i, n = i+size, n+1 {
			end := i + size
			if end > len(r) {
				end = len(r)
			}
			chunk := string(r[i:end])
			if len([]rune(strings.TrimSpace(chunk))) <= minSize {
				continue
			}
			out = append(out, types.KnowledgeChunk{
				Text:   chunk,
				Source: source,
				Page:   page,
				Chunk:  n,
			})
		}
	}
	return out
}

func ChunkItems(chunks []types.KnowledgeChunk) []types.Item {
	items := make([]types.Item, len(chunks))
	for i, c := range chunks {
		items[i] = c.Item()
	}
	return items
}
