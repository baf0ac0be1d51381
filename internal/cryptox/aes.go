package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"
)

// Block modes accepted before the "/" of an AES mode string.
const (
	ModeECB = "ECB"
	ModeCBC = "CBC"
	ModeCFB = "CFB"
	ModeOFB = "OFB"
	ModeCTR = "CTR"
)

var (
	errInputSize = errors.New("cryptox: input is not a whole number of blocks")
	errIVSize    = errors.New("cryptox: iv must be 16 bytes")
)

// AES encrypts or decrypts input. mode is "<MODE>/<Padding>", for example
// "CBC/Pkcs7"; unknown parts fall back to ECB and Pkcs7. key and iv are used
// as raw UTF-8 bytes. ECB ignores iv; other modes use a zero iv when none is
// given.
//
// Encryption returns base64 ciphertext. Decryption takes base64 and returns
// the plaintext, which must be valid UTF-8. Any failure returns "".
func AES(mode string, encrypt bool, input, key, iv string) string {
	out, err := aesX(mode, encrypt, input, key, iv)
	if err != nil {
		return ""
	}
	return out
}

func aesX(mode string, encrypt bool, input, key, iv string) (string, error) {
	blockMode, padding := parseMode(mode)

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", err
	}

	ivBytes := make([]byte, aesBlockSize)
	if blockMode != ModeECB && iv != "" {
		if len(iv) != aesBlockSize {
			return "", errIVSize
		}
		copy(ivBytes, iv)
	}

	if encrypt {
		plain, err := pad([]byte(input), padding)
		if err != nil {
			return "", err
		}
		ct, err := crypt(block, blockMode, ivBytes, plain, true)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(ct), nil
	}

	ct, err := decodeBase64(input)
	if err != nil {
		return "", err
	}
	plain, err := crypt(block, blockMode, ivBytes, ct, false)
	if err != nil {
		return "", err
	}
	plain, err = unpad(plain, padding)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", errBadPadding
	}
	return string(plain), nil
}

func parseMode(mode string) (blockMode, padding string) {
	blockMode, padding = ModeECB, defaultPadding
	parts := strings.SplitN(mode, "/", 2)
	switch strings.ToUpper(parts[0]) {
	case ModeCBC, ModeCFB, ModeOFB, ModeCTR:
		blockMode = strings.ToUpper(parts[0])
	}
	if len(parts) == 2 {
		switch parts[1] {
		case PaddingNone, PaddingZero, PaddingIso10126, PaddingIso97971, PaddingAnsiX923:
			padding = parts[1]
		}
	}
	return blockMode, padding
}

func crypt(block cipher.Block, mode string, iv, in []byte, encrypt bool) ([]byte, error) {
	out := make([]byte, len(in))

	switch mode {
	case ModeCBC:
		if len(in)%aesBlockSize != 0 {
			return nil, errInputSize
		}
		if encrypt {
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, in)
		} else {
			cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, in)
		}
	case ModeCFB:
		if encrypt {
			cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, in) //nolint:staticcheck
		} else {
			cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, in) //nolint:staticcheck
		}
	case ModeOFB:
		cipher.NewOFB(block, iv).XORKeyStream(out, in) //nolint:staticcheck
	case ModeCTR:
		cipher.NewCTR(block, iv).XORKeyStream(out, in)
	default:
		if len(in)%aesBlockSize != 0 {
			return nil, errInputSize
		}
		for i := 0; i < len(in); i += aesBlockSize {
			if encrypt {
				block.Encrypt(out[i:i+aesBlockSize], in[i:i+aesBlockSize])
			} else {
				block.Decrypt(out[i:i+aesBlockSize], in[i:i+aesBlockSize])
			}
		}
	}
	return out, nil
}
