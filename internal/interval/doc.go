// Package interval encodes validity intervals and searches packed interval lists.
//
// An interval list is stored as a flat sequence of big-endian int64 bounds:
//
//	[lower0][upper0][lower1][upper1]...
//
// Every interval is half-open, [Lower, Upper). An interval whose upper bound is
// Forever is open-ended. A well-formed list is sorted ascending, its intervals
// do not overlap, and only the last one may be open.
//
// The search functions operate on the packed bytes directly so the scan path
// never materializes a []Interval for rows it is about to discard.
package interval
