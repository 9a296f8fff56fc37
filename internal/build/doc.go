// Package build runs a repository's own install and build commands inside its working copy.
package build
