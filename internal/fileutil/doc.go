// Package fileutil holds the filesystem primitives the relocation engine is
// built on: moves that refuse to overwrite, verified cross-device copies,
// exclusive creates, recursive emptiness checks, and root containment.
package fileutil
