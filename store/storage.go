package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"auticare/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var ErrDocumentNotFound = errors.New("document not found")

type DBStorer interface {
	SaveDocument(context.Context, types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	SaveChunk(context.Context, types.Chunk) error
	DeleteChunksByDocID(context.Context, uuid.UUID) error
	// ReplaceDocument swaps a document and all of its chunks atomically.
	ReplaceDocument(context.Context, types.Document, []types.Chunk) error
	DeleteCorpus(context.Context, string) error
	CountChunks(context.Context, string) (int, error)
	Search(ctx context.Context, corpus string, vec []float32, limit int) ([]types.Chunk, error)
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		"SELECT id, title, source, source_path, created_at, updated_at, version FROM documents WHERE id = $1", docID)

	doc := &types.Document{}
	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Source,
		&doc.SourcePath,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.Version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) DeleteChunksByDocID(ctx context.Context, docID uuid.UUID) error {
	return deleteChunks(ctx, p.pool, docID)
}

func deleteChunks(ctx context.Context, db execer, docID uuid.UUID) error {
	_, err := db.Exec(ctx, "DELETE FROM chunks WHERE doc_id = $1", docID)
	return err
}

func (p *PostgresStore) DeleteCorpus(ctx context.Context, corpus string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM chunks WHERE corpus = $1", corpus)
	return err
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	return saveDocument(ctx, p.pool, doc)
}

func saveDocument(ctx context.Context, db execer, doc types.Document) error {
	query := `INSERT INTO documents (id, title, source, source_path, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			source_path = EXCLUDED.source_path,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
			`
	_, err := db.Exec(
		ctx,
		query,
		doc.ID,
		doc.Title,
		doc.Source,
		doc.SourcePath,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.Version,
	)

	return err
}

func (p *PostgresStore) SaveChunk(ctx context.Context, c types.Chunk) error {
	return saveChunk(ctx, p.pool, c)
}

func saveChunk(ctx context.Context, db execer, c types.Chunk) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal chunk metadata: %w", err)
	}
	query := `
    INSERT INTO chunks (id, doc_id, corpus, position, content, metadata, embedding)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = db.Exec(ctx, query,
		c.ID, c.DocID, c.Corpus, c.Position, c.Content, meta, pgvector.NewVector(c.Embedding),
	)
	return err
}

func (p *PostgresStore) ReplaceDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteChunks(ctx, tx, doc.ID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	if err := saveDocument(ctx, tx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	for _, c := range chunks {
		if err := saveChunk(ctx, tx, c); err != nil {
			return fmt.Errorf("save chunk %d: %w", c.Position, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) CountChunks(ctx context.Context, corpus string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM chunks WHERE corpus = $1", corpus).Scan(&n)
	return n, err
}

// Search returns the closest chunks of a corpus by cosine similarity.
// Distance holds the similarity (1 - cosine distance).
func (p *PostgresStore) Search(ctx context.Context, corpus string, queryVec []float32, limit int) ([]types.Chunk, error) {
	if len(queryVec) == 0 {
		return nil, errors.New("empty query vector")
	}

	vector := pgvector.NewVector(queryVec)

	query := `
		SELECT pc.id, pc.doc_id, pc.corpus, pc.position, pc.content, pc.metadata,
		       1-(pc.embedding <=> $1) as distance
		FROM chunks pc
		WHERE pc.corpus = $2 AND pc.embedding IS NOT NULL
		ORDER BY pc.embedding <=> $1
		LIMIT $3
	`
	rows, err := p.pool.Query(ctx, query, vector, corpus, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var meta []byte
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.Corpus,
			&chunk.Position,
			&chunk.Content,
			&meta,
			&chunk.Distance); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		log.Printf("[SEARCH] corpus %s chunk %s position %d similarity %.4f", corpus, chunk.DocID, chunk.Position, chunk.Distance)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) createRagTables(ctx context.Context, dimension int) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT,
		source_path TEXT,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE,
		version INTEGER DEFAULT 1
	);

	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL,
		corpus TEXT NOT NULL,
		position INT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB,
		embedding vector(%d)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_corpus ON chunks(corpus);
	`, dimension)
	_, err := p.pool.Exec(ctx, query)
	return err
}

// Init creates the tables. dimension must match the embedder output.
func (p *PostgresStore) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	return p.createRagTables(ctx, dimension)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
