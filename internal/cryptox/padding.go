package cryptox

import (
	"bytes"
	"crypto/rand"
	"errors"
)

// Padding names accepted after the "/" of an AES mode string.
const (
	PaddingPkcs7    = "Pkcs7"
	PaddingNone     = "NoPadding"
	PaddingZero     = "ZeroPadding"
	PaddingIso10126 = "Iso10126"
	PaddingIso97971 = "Iso97971"
	PaddingAnsiX923 = "AnsiX923"
	defaultPadding  = PaddingPkcs7
	aesBlockSize    = 16
)

var errBadPadding = errors.New("cryptox: bad padding")

func pad(data []byte, scheme string) ([]byte, error) {
	n := aesBlockSize - len(data)%aesBlockSize

	switch scheme {
	case PaddingNone:
		return data, nil
	case PaddingZero:
		if len(data)%aesBlockSize == 0 && len(data) > 0 {
			return data, nil
		}
		return append(data, make([]byte, n)...), nil
	case PaddingIso10126:
		fill := make([]byte, n)
		if _, err := rand.Read(fill[:n-1]); err != nil {
			return nil, err
		}
		fill[n-1] = byte(n)
		return append(data, fill...), nil
	case PaddingIso97971:
		fill := make([]byte, n)
		fill[0] = 0x80
		return append(data, fill...), nil
	case PaddingAnsiX923:
		fill := make([]byte, n)
		fill[n-1] = byte(n)
		return append(data, fill...), nil
	default:
		return append(data, bytes.Repeat([]byte{byte(n)}, n)...), nil
	}
}

func unpad(data []byte, scheme string) ([]byte, error) {
	switch scheme {
	case PaddingNone:
		return data, nil
	case PaddingZero:
		return bytes.TrimRight(data, "\x00"), nil
	case PaddingIso97971:
		i := bytes.LastIndexByte(data, 0x80)
		if i < 0 || len(bytes.Trim(data[i+1:], "\x00")) != 0 {
			return nil, errBadPadding
		}
		return data[:i], nil
	}

	if len(data) == 0 {
		return nil, errBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aesBlockSize || n > len(data) {
		return nil, errBadPadding
	}
	if scheme == PaddingPkcs7 || scheme == "" {
		for _, b := range data[len(data)-n:] {
			if int(b) != n {
				return nil, errBadPadding
			}
		}
	}
	return data[:len(data)-n], nil
}
