package cryptox

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// MD5 returns the lowercase hex md5 digest of text.
func MD5(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Base64Encode encodes text with the standard padded alphabet.
func Base64Encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// Base64Decode decodes standard or URL-safe base64, padded or not. It
// returns "" when the input is not base64.
func Base64Decode(text string) string {
	b, err := decodeBase64(text)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeBase64(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var err error
	for _, enc := range encodings {
		var b []byte
		if b, err = enc.DecodeString(text); err == nil {
			return b, nil
		}
	}
	return nil, err
}
