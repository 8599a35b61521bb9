// Package metadata holds the per-record payloads of an index and their
// on-disk sidecar.
//
// # Values and documents
//
// Metadata is schema-free. A [Value] is one of null, int, float, string, bool,
// array or object, and a [Document] is an ordered mapping of string keys to
// values:
//
//	meta := metadata.NewDocument(
//	    metadata.Field{Key: "source", Value: metadata.String("report.pdf")},
//	    metadata.Field{Key: "page", Value: metadata.Int(3)},
//	)
//
// Both encode to plain JSON and keep key order across a round trip.
//
// # Sidecar
//
// A [Sidecar] maps vector IDs to a [Record] (text plus metadata) and carries the
// dimension and metric of its index. On disk it is an indented JSON file:
//
//	{
//	  "dimension": 384,
//	  "metric": "cosine",
//	  "records": {
//	    "1": {"text": "...", "metadata": {...}}
//	  }
//	}
//
// [LoadSidecar] treats a missing file as empty and fails with
// [ErrCorruptMetadata] on a file that is not a JSON object.
//
// # Filters
//
// [FilterSet] evaluates simple comparisons against record metadata; search uses
// it to restrict hits.
package metadata
