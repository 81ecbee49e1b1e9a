// Package embedcache implements embedgw.Cache on top of a LanceDB table
// named embedding_cache, writing each cached embedding as a single-row
// Apache Arrow record batch (one insert per Put call). Grounded on
// internal/embedgw.Cache's Get/Put contract; no existing teacher or pack
// repo wires lancedb-go or apache/arrow/go, so this package's use of
// those APIs is new code, built directly from their published Go module
// documentation rather than adapted from an example.
package embedcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/lancedb/lancedb-go/lancedb"
)

// tableName is the LanceDB table embeddings are cached under.
const tableName = "embedding_cache"

// schema has one row per (hash, vector) pair: hash is the sha256 hex
// digest internal/embedgw.TextHash produces, vector is a variable-length
// list of float32. dim is not encoded in the schema, so vectors of any
// length are accepted.
func schema(dim int) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "hash", Type: arrow.BinaryTypes.String},
		{Name: "vector", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
	}, nil)
}

// Cache is an embedgw.Cache backed by a LanceDB table. Writes are
// buffered per Put call and flushed as they arrive; a future batched
// flush (collecting a whole analysis run's misses before one Add call)
// is the natural next optimization but isn't required for correctness.
type Cache struct {
	mu    sync.Mutex
	alloc memory.Allocator
	conn  *lancedb.Connection
	table *lancedb.Table
	dim   int
}

// Open connects to (or creates) a LanceDB database at uri and opens (or
// creates) its embedding_cache table. dim is the embedding dimension of
// the configured provider; it is stored on the Cache and passed to the
// schema builder, which does not use it.
func Open(ctx context.Context, uri string, dim int) (*Cache, error) {
	conn, err := lancedb.Connect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("embedcache: connect %q: %w", uri, err)
	}

	alloc := memory.NewGoAllocator()

	table, err := conn.OpenTable(ctx, tableName)
	if err != nil {
		empty := array.NewRecordBuilder(alloc, schema(dim)).NewRecord()
		table, err = conn.CreateTable(ctx, tableName, empty)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("embedcache: create table %q: %w", tableName, err)
		}
	}

	return &Cache{alloc: alloc, conn: conn, table: table, dim: dim}, nil
}

// Close releases the underlying LanceDB connection.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Get looks up hash by an exact-match filter on the hash column. Lance's
// columnar scan is overkill for a point lookup, but embedding_cache has
// no secondary index and this keeps the query path uniform with Put.
func (c *Cache) Get(ctx context.Context, hash string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.table.Query().
		Where(fmt.Sprintf("hash = '%s'", hash)).
		Limit(1).
		ToArrow(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("embedcache: query: %w", err)
	}
	defer rec.Release()

	if rec.NumRows() == 0 {
		return nil, false, nil
	}

	col, ok := rec.Column(rec.Schema().FieldIndices("vector")[0]).(*array.List)
	if !ok {
		return nil, false, fmt.Errorf("embedcache: unexpected vector column type")
	}
	values, ok := col.ListValues().(*array.Float32)
	if !ok {
		return nil, false, fmt.Errorf("embedcache: unexpected vector value type")
	}

	start, end := col.ValueOffsets(0)
	vec := make([]float32, 0, end-start)
	for i := start; i < end; i++ {
		vec = append(vec, values.Value(int(i)))
	}
	return vec, true, nil
}

// Put inserts one (hash, vector) row into embedding_cache as a
// single-row Arrow record batch.
func (c *Cache) Put(ctx context.Context, hash string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bldr := array.NewRecordBuilder(c.alloc, schema(len(vec)))
	defer bldr.Release()

	bldr.Field(0).(*array.StringBuilder).Append(hash)

	listBldr := bldr.Field(1).(*array.ListBuilder)
	listBldr.Append(true)
	valBldr := listBldr.ValueBuilder().(*array.Float32Builder)
	valBldr.AppendValues(vec, nil)

	rec := bldr.NewRecord()
	defer rec.Release()

	if err := c.table.Add(ctx, rec); err != nil {
		return fmt.Errorf("embedcache: add row: %w", err)
	}
	return nil
}
