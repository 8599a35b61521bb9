// Package persistence provides the on-disk building blocks used by the index
// store: a little-endian binary header/reader/writer, CRC32 checksumming, an
// atomic temp-file-plus-rename writer and staged writes for multi-file commits.
//
// All file access goes through [fs.FileSystem] so tests can inject faults.
package persistence
