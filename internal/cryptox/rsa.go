package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
)

// ModeOAEP selects RSA-OAEP with SHA-1. Any other mode uses PKCS#1 v1.5.
const ModeOAEP = "RSA-OAEP"

var errNoKey = errors.New("cryptox: no usable RSA key in PEM")

// RSA encrypts input with a PEM public key and returns base64, or decrypts
// base64 input with a PEM private key. Any failure returns "".
func RSA(mode string, encrypt bool, input, pemKey string) string {
	out, err := rsaX(mode, encrypt, input, pemKey)
	if err != nil {
		return ""
	}
	return out
}

func rsaX(mode string, encrypt bool, input, pemKey string) (string, error) {
	oaep := strings.EqualFold(mode, ModeOAEP)

	if encrypt {
		pub, err := parsePublicKey(pemKey)
		if err != nil {
			return "", err
		}
		var ct []byte
		if oaep {
			ct, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, []byte(input), nil) //nolint:gosec
		} else {
			ct, err = rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(input))
		}
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(ct), nil
	}

	priv, err := parsePrivateKey(pemKey)
	if err != nil {
		return "", err
	}
	ct, err := decodeBase64(input)
	if err != nil {
		return "", err
	}
	var plain []byte
	if oaep {
		plain, err = rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ct, nil) //nolint:gosec
	} else {
		plain, err = rsa.DecryptPKCS1v15(rand.Reader, priv, ct)
	}
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func parsePublicKey(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errNoKey
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// a certificate carries the key too
		cert, cerr := x509.ParseCertificate(block.Bytes)
		if cerr != nil {
			return nil, err
		}
		key = cert.PublicKey
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errNoKey
	}
	return pub, nil
}

func parsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errNoKey
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errNoKey
	}
	return priv, nil
}
