package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainStatement prefixes statement hashes. The version suffix allows the
// hashed layout to change without colliding with older identities.
const DomainStatement = "docrepo/statement/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StatementID computes the content-addressed identity of a rendered statement.
// The same namespace, method, text and parameter names always hash the same.
func StatementID(namespace, method, text string, params []string) (string, error) {
	if params == nil {
		params = []string{}
	}
	obj := map[string]any{
		"namespace": namespace,
		"method":    method,
		"text":      text,
		"params":    params,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StatementID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}
