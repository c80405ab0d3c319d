// Package fs abstracts the file system operations used by local blob storage.
//
// Production code uses [Default], a thin wrapper over the os package. Tests
// wrap it in a [FaultyFS] to make writes, syncs, closes or renames of
// selected files fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp-", fs.Fault{FailAfterBytes: 1024})
package fs
