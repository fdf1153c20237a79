// Package je synchronizes a subtree of a remote content repository with a local mirror.
//
// The remote is reached only through its package manager.
// To download ("get") a local path,
// je builds a package whose filter names that path's repository location,
// uploads it,
// asks the remote to build it
// (which fills it with the current remote content),
// downloads the result,
// and unpacks it over the local path.
// To upload ("put"),
// it builds the same kind of package with the local content inside
// and asks the remote to install it.
//
// Local paths are mapped to repository paths by the jcr_root segment they must contain:
// /home/me/project/jcr_root/content/site maps to /content/site.
//
// After a get,
// volatile property lines
// (modification dates, last-modified-by, and so on)
// can be removed from the downloaded .content.xml files
// by a configurable list of ignore rules,
// so that repeated downloads of unchanged content produce no diff.
//
// This package holds the types shared by the subpackages.
// The pipeline itself is in package jsync.
package je
