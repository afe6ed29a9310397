// Package snapshot reads and writes board exports.
//
// An export is the tile list as JSON using the field names of engine.Tile,
// optionally zstd compressed. Imports are checked against an embedded JSON
// Schema and also accept the field names written by the old web editor.
package snapshot
