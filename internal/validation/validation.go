// Package validation provides input validation middleware and address
// shape checks for the firewall API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// tronAddressRegex matches base58check-encoded TRON mainnet addresses.
var tronAddressRegex = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// PlausibleAddress reports whether an address has the expected shape for
// its chain. Addresses are otherwise opaque to the engine, so callers
// should treat a false result as advisory, not a rejection.
func PlausibleAddress(chain, addr string) bool {
	switch chain {
	case "ETHEREUM":
		return common.IsHexAddress(addr)
	case "TRON":
		return tronAddressRegex.MatchString(addr)
	default:
		return addr != ""
	}
}

// NormalizeAddress trims whitespace and canonicalizes case where the chain
// has a case-insensitive encoding. TRON base58 is case-sensitive and is
// left alone.
func NormalizeAddress(chain, addr string) string {
	addr = strings.TrimSpace(addr)
	if chain == "ETHEREUM" && common.IsHexAddress(addr) {
		return strings.ToLower(addr)
	}
	return addr
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}
