// Package files models the build's file manifest and the operations that
// move it between memory and disk.
//
// A [Manifest] is an ordered mapping from a logical, slash-separated path to
// a [File]. Files are either inline ([FileBlob]) or point at the local
// filesystem ([FileFsRef]).
//
// # Materializing
//
// [Download] writes a manifest into a directory and resolves the entrypoint's
// on-disk path; [WriteAll] does the same without an entrypoint. [Glob] goes the other way: it walks a directory and rebuilds
// the manifest from what is on disk. Out-of-process tools such as composer
// cannot report which files they added, so the builder re-scans instead of
// diffing.
//
// # Rewriting
//
// [Rename] rewrites keys with a function and rejects collisions. [Prefix]
// relocates every key under a directory, and [StripRoot] removes document
// root segments from an output path:
//
//	files.StripRoot("api/v1/index.php", "api") // "v1/index.php"
package files
