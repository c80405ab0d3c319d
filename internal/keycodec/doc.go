// Package keycodec builds byte-sortable composite keys for index cells.
//
// A composite key combines an indexed value with an entity key so that
// ascending byte order visits values in ascending order and, within one value,
// entity keys in ascending order:
//
//	int64:   [8 bytes sign-flipped BE][entity]
//	float64: [8 bytes order-preserving IEEE-754][entity]
//	text:    [esc(value)][entity][uint32 BE len(esc(value))]
//	folded:  [esc(fold(value))][original][entity][uint32 len(esc(fold))][uint32 len(original)]
//
// esc escapes 0x00 as 0x00 0xFF and terminates the value with 0x00 0x01, so a
// value that is a prefix of another still sorts first regardless of the entity
// key that follows it.
//
// The package also owns physical table naming (see TableName).
package keycodec
