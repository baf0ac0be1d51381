package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5(""))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", MD5("hello"))
}

func TestBase64(t *testing.T) {
	assert.Equal(t, "aGVsbG8gd29ybGQ=", Base64Encode("hello world"))
	assert.Equal(t, "hello world", Base64Decode("aGVsbG8gd29ybGQ="))
	assert.Equal(t, "hello world", Base64Decode("aGVsbG8gd29ybGQ"), "unpadded input")
	assert.Equal(t, "??>", Base64Decode("Pz8-"), "url-safe input")
	assert.Equal(t, "", Base64Decode("%%%"))
}

func TestAESKnownVectors(t *testing.T) {
	key := "1234567890123456"

	assert.Equal(t, "67fHA+Z12z2jlwOLTBeCPA==", AES("ECB/Pkcs7", true, "hello", key, ""))
	assert.Equal(t, "hello", AES("ECB/Pkcs7", false, "67fHA+Z12z2jlwOLTBeCPA==", key, ""))

	assert.Equal(t, "lbfCBl4deQN+G2ZBnYuePg==", AES("CBC/Pkcs7", true, "hello", key, "abcdefghabcdefgh"))
	assert.Equal(t, "hello", AES("CBC/Pkcs7", false, "lbfCBl4deQN+G2ZBnYuePg==", key, "abcdefghabcdefgh"))
}

func TestAESRoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	iv := "abcdef9876543210"
	modes := []string{ModeECB, ModeCBC, ModeCFB, ModeOFB, ModeCTR}
	paddings := []string{PaddingPkcs7, PaddingZero, PaddingIso10126, PaddingIso97971, PaddingAnsiX923}

	for _, m := range modes {
		for _, p := range paddings {
			mode := m + "/" + p
			t.Run(mode, func(t *testing.T) {
				ct := AES(mode, true, "视频 plaintext 123", key, iv)
				require.NotEmpty(t, ct)
				assert.Equal(t, "视频 plaintext 123", AES(mode, false, ct, key, iv))
			})
		}
	}
}

func TestAESNoPadding(t *testing.T) {
	key := "1234567890123456"

	ct := AES("CBC/NoPadding", true, "exactly16bytes!!", key, "")
	require.NotEmpty(t, ct)
	assert.Equal(t, "exactly16bytes!!", AES("CBC/NoPadding", false, ct, key, ""))

	assert.Empty(t, AES("CBC/NoPadding", true, "short", key, ""), "unaligned input")
	assert.NotEmpty(t, AES("CTR/NoPadding", true, "short", key, ""), "stream modes need no alignment")
}

func TestAESDefaults(t *testing.T) {
	key := "1234567890123456"
	a := AES("", true, "data", key, "")
	b := AES("ECB/Pkcs7", true, "data", key, "")
	assert.Equal(t, b, a)
	assert.Equal(t, a, AES("bogus/unknown", true, "data", key, ""))
}

func TestAESFailures(t *testing.T) {
	assert.Empty(t, AES("ECB/Pkcs7", true, "data", "short key", ""), "bad key length")
	assert.Empty(t, AES("CBC/Pkcs7", true, "data", "1234567890123456", "short iv"), "bad iv length")
	assert.Empty(t, AES("ECB/Pkcs7", false, "not base64!", "1234567890123456", ""), "bad ciphertext")

	ct := AES("CBC/Pkcs7", true, "data", "1234567890123456", "")
	assert.Empty(t, AES("CBC/Pkcs7", false, ct, "6543210987654321", ""), "wrong key")
}

func TestPadUnpad(t *testing.T) {
	tests := []struct {
		scheme string
		in     string
	}{
		{PaddingPkcs7, ""},
		{PaddingPkcs7, "0123456789abcdef"},
		{PaddingIso97971, "abc"},
		{PaddingAnsiX923, "abc"},
		{PaddingZero, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.scheme+"/"+tt.in, func(t *testing.T) {
			padded, err := pad([]byte(tt.in), tt.scheme)
			require.NoError(t, err)
			assert.Zero(t, len(padded)%aesBlockSize)
			out, err := unpad(padded, tt.scheme)
			require.NoError(t, err)
			assert.Equal(t, tt.in, string(out))
		})
	}

	_, err := unpad([]byte{1, 2, 3, 9}, PaddingPkcs7)
	assert.Error(t, err)
}

func TestRSA(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	pkcs1PEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}))
	pkcs8DER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	pkcs8PEM := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8DER}))

	for _, mode := range []string{ModeOAEP, "RSAES-PKCS1-V1_5"} {
		t.Run(mode, func(t *testing.T) {
			ct := RSA(mode, true, "secret", pubPEM)
			require.NotEmpty(t, ct)
			assert.Equal(t, "secret", RSA(mode, false, ct, pkcs1PEM))
			assert.Equal(t, "secret", RSA(mode, false, ct, pkcs8PEM))
		})
	}

	assert.Empty(t, RSA(ModeOAEP, true, "secret", "not a pem"))
	assert.Empty(t, RSA(ModeOAEP, false, "AAAA", pkcs1PEM))
}
