package fit

import "errors"

var (
	// ErrMalformedHeader marks an unusable file header. Nothing is decoded.
	ErrMalformedHeader = errors.New("malformed file header")

	// ErrUndefinedLocalMessage marks a data record whose local message type
	// has no preceding definition record. The stream is treated as corrupt.
	ErrUndefinedLocalMessage = errors.New("data record references undefined local message type")

	// ErrTruncatedRecord marks a stream that ends mid-record relative to the
	// header's declared data size.
	ErrTruncatedRecord = errors.New("truncated record")

	// ErrChecksumMismatch is returned from Next in strict-CRC mode when the
	// trailing checksum does not match. In the default mode the mismatch is
	// recorded as a warning instead.
	ErrChecksumMismatch = errors.New("file checksum mismatch")
)
