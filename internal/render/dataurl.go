package render

import (
	"encoding/base64"
	"strings"
)

const (
	dataURLPrefix = "data:application/pdf;base64,"
	// dataURLChunk is a multiple of 3 so chunks concatenate without padding.
	dataURLChunk = 3 * 8192
)

// DataURL encodes b as an inline PDF data URI. The input is encoded in fixed
// chunks so memory use per step stays flat for large documents.
func DataURL(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(dataURLPrefix) + base64.StdEncoding.EncodedLen(len(b)))
	sb.WriteString(dataURLPrefix)

	buf := make([]byte, base64.StdEncoding.EncodedLen(dataURLChunk))
	for start := 0; start < len(b); start += dataURLChunk {
		end := start + dataURLChunk
		if end > len(b) {
			end = len(b)
		}
		n := base64.StdEncoding.EncodedLen(end - start)
		base64.StdEncoding.Encode(buf[:n], b[start:end])
		sb.Write(buf[:n])
	}
	return sb.String()
}
