// Package catalog resolves logical index references to the pair of files that
// make up an index on disk and lists the indexes below a directory.
//
// An index named "docs" lives in two sibling files:
//
//	docs.faiss       vector index
//	docs.meta.json   metadata sidecar
//
// Paths are canonicalized before use: a leading "~" is expanded, the path is
// made absolute and cleaned, and the extension is forced to ".faiss".
package catalog
