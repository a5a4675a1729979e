package capture

import "bytes"

// maxLineBytes bounds a single decoded payload; longer input is split.
const maxLineBytes = 4096

// scanDecodedLines splits on \n or \r. Scanners in keyboard and serial modes
// differ on which terminator they send; the empty token between \r and \n is
// dropped by the read loop like any blank line.
func scanDecodedLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if len(data) >= maxLineBytes {
		return maxLineBytes, data[:maxLineBytes], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
