// Package exporter writes the files PatentWorld publishes.
//
// JSONWriter encodes analysis results inside an Envelope, rounding floats to
// the configured precision and writing NaN and infinities as null. Files are
// written to a temporary sibling and renamed into place, so a reader never
// sees a partial output and every run fully replaces the previous one.
//
// CSVWriter covers tabular side outputs such as the audit report, with an
// optional UTF-8 BOM for spreadsheet tools.
//
// Digest and DigestBytes compute the BLAKE2b-256 digests recorded in the
// build manifest.
package exporter
