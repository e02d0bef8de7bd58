// Package ffprobe inspects media containers via the ffprobe CLI.
//
// The dubbing pipeline uses it for preflight checks (does the source carry an
// audio stream, how long is it) and for measuring the reference duration the
// assembly stage conforms to.
package ffprobe
