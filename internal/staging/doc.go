// Package staging reclaims disk space under the data directory.
//
// Dubbing leaves three kinds of files behind: intermediate audio in temp/,
// accepted videos in uploads/, and finished dubs in outputs/. The pipeline
// deletes intermediates as jobs finish; this package is the external sweep
// for whatever survives a crash or is never downloaded. Callers pass the
// artifacts of active jobs so in-flight work is never touched.
package staging
