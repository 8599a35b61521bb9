// Package chunkcanvas stores embedding indexes on the local file system.
//
// An index is a pair of sibling files: a vector index ("<name>.faiss") that
// maps caller-chosen int64 IDs to fixed-dimension vectors, and a JSON
// metadata sidecar ("<name>.meta.json") holding the text and metadata of
// every ID. A Store creates, mutates and reads such pairs and keeps the two
// files in correspondence: after every successful write both contain the
// same set of IDs.
//
// # Quick Start
//
//	ctx := context.Background()
//	store := chunkcanvas.New()
//
//	info, _ := store.Create(ctx, chunkcanvas.CreateRequest{
//	    BaseDir:   "./indexes",
//	    Name:      "docs",
//	    Dimension: 4,
//	    Metric:    "cosine",
//	})
//
//	_, _ = store.Upsert(ctx, info.Path, []chunkcanvas.Item{
//	    {ID: 1, Text: "hello", Vector: []float32{1, 0, 0, 0}},
//	})
//
//	page, _ := store.Content(ctx, info.Path, chunkcanvas.ContentQuery{Limit: 10})
//	res, _ := store.Search(ctx, info.Path, chunkcanvas.SearchQuery{
//	    Vector: []float32{1, 0, 0, 0},
//	    K:      5,
//	})
//
// # Metrics
//
// Three metrics are supported: "cosine", "l2" and "ip". Under cosine every
// stored vector is L2-normalized at write time and queries are normalized
// before the inner product is taken. l2 ranks by squared Euclidean distance.
//
// # Writes
//
// Upsert replaces every ID of the batch in both files. A batch is validated
// completely (duplicates, dimension) before anything is touched. Both files
// are then committed together: the sidecar is staged next to its target, the
// vector index is atomically replaced, and the staged sidecar is renamed into
// place last. If the process dies before that final rename, the next access
// to the index finishes or discards the staged sidecar depending on whether
// the vector index on disk is the one it was written for.
//
// # Concurrency
//
// All operations on one index are serialized against writes of the same
// index. Readers share a lock. Indexes at different paths never contend.
// WithFileLocking extends the guard across processes with an advisory lock.
//
// # Mirroring
//
// WithMirror uploads both files to a blobstore.Store after every commit, and
// WithJournal records each upload. See packages blobstore/minio and
// blobstore/s3.
package chunkcanvas
