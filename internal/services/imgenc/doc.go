// Package imgenc defines the opaque image encode surface consumed by the
// conversion pipeline, plus an implementation that shells out to the
// per-format encoder binaries (avifenc, cwebp, cjxl).
package imgenc
