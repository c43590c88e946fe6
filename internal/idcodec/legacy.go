package idcodec

import (
	"errors"
	"strings"

	"specimentrack/pkg/domain"
)

// Legacy compatibility boundary.
//
// Older writers stored parent references after encoding an already encoded
// token, yielding 48 hex characters. The transform below undoes exactly that
// one extra layer and is not meant to be extended to deeper nesting.

// DecodeDoubleEncoded recovers the id from a token that was encoded twice:
// hex-decode, decrypt, trim the '!' padding, then run the standard Decode on
// the inner token.
func (c *Codec) DecodeDoubleEncoded(token string) (int64, error) {
	plain, err := c.decrypt(token)
	if err != nil {
		return 0, err
	}
	inner := strings.TrimLeft(plain, padChar)
	if inner == "" {
		return 0, domain.MalformedIDError{Token: token, Err: errors.New("empty inner token")}
	}
	id, err := c.Decode(inner)
	if err != nil {
		return 0, domain.MalformedIDError{Token: token, Err: err}
	}
	return id, nil
}

// LegacyDoubleEncode reproduces the historical double encoding. It exists so
// tests and data-repair tooling can fabricate legacy records.
func (c *Codec) LegacyDoubleEncode(id int64) string {
	return c.encodeString(c.Encode(id))
}
