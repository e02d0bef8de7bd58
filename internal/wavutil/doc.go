// Package wavutil reads, writes, and reshapes mono PCM WAV clips.
//
// It wraps go-audio decoding/encoding behind a small Clip type with the
// operations the stitcher needs: concatenation, silence insertion, bounded
// linear-interpolation time stretching, and peak normalization.
package wavutil
