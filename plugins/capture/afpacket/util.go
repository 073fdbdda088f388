package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // approximate TPACKET3_HDRLEN
	maxBlockSize     = 4 * 1024 * 1024
)

// recomputeSize derives frame size, block size and block count for a ring of
// roughly bufferSizeMB megabytes. PACKET_MMAP requires frames aligned to
// TPACKET_ALIGNMENT and blocks that are multiples of both the page size and
// the frame size.
func recomputeSize(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	if bufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// Fall back to the largest page-aligned block that still holds whole frames.
		blockSize = (maxBlockSize / frameSize) * frameSize
		blockSize = alignUp(blockSize, pageSize)
	}
	if blockSize < frameSize {
		blockSize = alignUp(frameSize, pageSize)
	}

	numBlocks = max(bufferSizeMB*1024*1024/blockSize, 1)
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return ((n + align - 1) / align) * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return (a / gcd(a, b)) * b
}
