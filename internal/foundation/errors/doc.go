// Package errors provides the classified error primitives used across slidebuilder.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category (forge, git, build, validation, ...), a severity, a retry strategy and
// structured context. Domain failure kinds (sync failed, build failed, slug
// collision, ...) are expressed as ErrorKind values so callers can branch with
// errors.Is against the sentinel errors exported by each package.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryGit, "repository sync failed").
//		WithKind(errors.KindSyncFailed).
//		WithContext("repository", name).
//		Build()
//
//	if errors.Is(err, git.ErrSyncFailed) { ... }
package errors
