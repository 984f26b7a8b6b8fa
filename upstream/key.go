// upstream/key.go
package upstream

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
)

// CacheKey derives a deterministic key from the call coordinates. The scope
// component isolates tenants from one another; the body is canonicalized so
// semantically identical payloads hash identically regardless of field
// insertion order.
func CacheKey(backend, path, scope string, query url.Values, body []byte) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write([]byte(scope))
	h.Write([]byte{'\n'})
	h.Write([]byte(query.Encode())) // Encode sorts by key
	h.Write([]byte{'\n'})
	h.Write(canonicalizeBody(body))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalizeBody re-encodes JSON bodies through an untyped decode so that
// object keys come out sorted at every depth. Non-JSON bodies hash raw.
func canonicalizeBody(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return body
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return canonical
}
