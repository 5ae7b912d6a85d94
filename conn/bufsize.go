package conn

const (
	// DefaultBufferSize is used when the receive buffer size is unknown.
	DefaultBufferSize = 64 * 1024

	// MinBufferSize is the smallest relay buffer handed out.
	MinBufferSize = 4 * 1024

	// MaxBufferSize caps per-connection relay buffers.
	MaxBufferSize = 4 * 1024 * 1024
)

func clampBufferSize(size int) int {
	switch {
	case size <= 0:
		return DefaultBufferSize
	case size < MinBufferSize:
		return MinBufferSize
	case size > MaxBufferSize:
		return MaxBufferSize
	default:
		return size
	}
}
