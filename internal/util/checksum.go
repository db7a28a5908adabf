package util

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// crc32Table is precomputed once
var crc32Table = crc32.MakeTable(crc32.IEEE)

// ComputeChecksum computes a CRC32 checksum for the given data
func ComputeChecksum(data []byte) uint32 {
	return crc32.Checksum(data, crc32Table)
}

// ETag returns a strong entity tag for a response body
func ETag(body []byte) string {
	return `"` + strconv.FormatUint(uint64(ComputeChecksum(body)), 16) + `"`
}

// MatchETag reports whether an If-None-Match header value matches etag
func MatchETag(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
