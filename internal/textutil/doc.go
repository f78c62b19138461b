// Package textutil sanitizes user-supplied names before they touch the
// filesystem: upload filenames, voice ids, and path segments.
package textutil
