// Package textutil provides text helpers for asset naming: URL slugs, display
// names derived from upload filenames, and filename sanitization.
//
// Slugs are ASCII only. Accented Latin letters are folded to their base
// letter before everything outside [a-z0-9] collapses to a single hyphen.
package textutil
