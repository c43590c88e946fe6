// Package idcodec maps internal integer ids to opaque external tokens.
//
// A token is the decimal id left-padded with '!' to a whole number of 8-byte
// blocks, encrypted block by block with Blowfish and rendered as lowercase hex.
// Ids below 10^7 therefore encode to 16 characters.
package idcodec

import (
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blowfish"

	"specimentrack/pkg/domain"
)

const (
	padChar   = "!"
	blockSize = blowfish.BlockSize
)

var errEmptySecret = errors.New("id secret required")

// Codec encodes and decodes external identifiers. It is safe for concurrent use.
type Codec struct {
	block cipher.Block
}

// New builds a codec keyed by secret. Blowfish accepts keys of 1 to 56 bytes.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	block, err := blowfish.NewCipher([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("init id cipher: %w", err)
	}
	return &Codec{block: block}, nil
}

// Encode returns the external token for id.
func (c *Codec) Encode(id int64) string {
	return c.encodeString(strconv.FormatInt(id, 10))
}

// Decode returns the id carried by token. Failures are domain.MalformedIDError.
func (c *Codec) Decode(token string) (int64, error) {
	plain, err := c.decrypt(token)
	if err != nil {
		return 0, err
	}
	digits := strings.TrimLeft(plain, padChar)
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, domain.MalformedIDError{Token: token, Err: errors.New("payload is not an integer")}
	}
	if id < 0 {
		return 0, domain.MalformedIDError{Token: token, Err: errors.New("negative id")}
	}
	return id, nil
}

func (c *Codec) encodeString(s string) string {
	padded := []byte(strings.Repeat(padChar, blockSize-len(s)%blockSize) + s)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += blockSize {
		c.block.Encrypt(out[i:i+blockSize], padded[i:i+blockSize])
	}
	return hex.EncodeToString(out)
}

func (c *Codec) decrypt(token string) (string, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return "", domain.MalformedIDError{Token: token, Err: err}
	}
	if len(raw) == 0 || len(raw)%blockSize != 0 {
		return "", domain.MalformedIDError{Token: token, Err: fmt.Errorf("ciphertext length %d is not a whole number of blocks", len(raw))}
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += blockSize {
		c.block.Decrypt(out[i:i+blockSize], raw[i:i+blockSize])
	}
	return string(out), nil
}
