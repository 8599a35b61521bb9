// Package fs abstracts the few filesystem calls the store makes so tests can
// inject failures into one file of an index pair.
//
// [LocalFS] delegates to package os and is what [Default] holds. [FaultyFS]
// wraps another FileSystem and fails operations on paths matching a rule:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".faiss", fs.Fault{FailOnSync: true})
//	store := chunkcanvas.New(chunkcanvas.WithFileSystem(ffs))
//
// Calls take no context.Context; none of them block for long.
package fs
