// Package publish hands a manifest to the downstream bundler and copies
// successful build outputs into the slug-addressed output tree.
//
// The bundler sees the manifest as the virtual module "virtual:slides".
// Resolution only succeeds for that exact identifier; the resolved id carries
// a NUL prefix so no other resolver claims it.
package publish
