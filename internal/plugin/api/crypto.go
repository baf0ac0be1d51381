package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/vvip-tv/vvip-parser/internal/cryptox"
	"github.com/vvip-tv/vvip-parser/internal/plugin/security"
)

// CryptoModule installs md5X, aesX, rsaX, base64Encode and base64Decode.
// Every function returns "" when its input cannot be processed.
type CryptoModule struct{}

// NewCryptoModule creates a new crypto module.
func NewCryptoModule() *CryptoModule {
	return &CryptoModule{}
}

// Name returns the module name.
func (m *CryptoModule) Name() string {
	return "crypto"
}

// RequiredCapability returns the capability required for this module.
func (m *CryptoModule) RequiredCapability() security.Capability {
	return security.CapabilityCrypto
}

// Globals returns the installed global names.
func (m *CryptoModule) Globals() []string {
	return []string{"md5X", "aesX", "rsaX", "base64Encode", "base64Decode"}
}

// Register registers the module into the Lua state.
func (m *CryptoModule) Register(L *lua.LState) error {
	L.SetGlobal("md5X", L.NewFunction(m.md5))
	L.SetGlobal("aesX", L.NewFunction(m.aes))
	L.SetGlobal("rsaX", L.NewFunction(m.rsa))
	L.SetGlobal("base64Encode", L.NewFunction(m.base64Encode))
	L.SetGlobal("base64Decode", L.NewFunction(m.base64Decode))
	return nil
}

// md5X(text) -> hex digest
func (m *CryptoModule) md5(L *lua.LState) int {
	L.Push(lua.LString(cryptox.MD5(L.OptString(1, ""))))
	return 1
}

// aesX(mode, encrypt, input, key, iv) -> string
func (m *CryptoModule) aes(L *lua.LState) int {
	mode := L.OptString(1, "")
	encrypt := truthy(L.Get(2))
	input := L.OptString(3, "")
	key := L.OptString(4, "")
	iv := L.OptString(5, "")

	L.Push(lua.LString(cryptox.AES(mode, encrypt, input, key, iv)))
	return 1
}

// rsaX(mode, encrypt, input, pemKey) -> string
func (m *CryptoModule) rsa(L *lua.LState) int {
	mode := L.OptString(1, "")
	encrypt := truthy(L.Get(2))
	input := L.OptString(3, "")
	key := L.OptString(4, "")

	L.Push(lua.LString(cryptox.RSA(mode, encrypt, input, key)))
	return 1
}

func (m *CryptoModule) base64Encode(L *lua.LState) int {
	L.Push(lua.LString(cryptox.Base64Encode(L.OptString(1, ""))))
	return 1
}

func (m *CryptoModule) base64Decode(L *lua.LState) int {
	L.Push(lua.LString(cryptox.Base64Decode(L.OptString(1, ""))))
	return 1
}
