// Package cryptox implements the hashing and cipher helpers exposed to
// plugins: md5 digests, AES in several block modes and paddings, RSA and
// base64.
//
// Every helper reports failure as an empty string. Plugins treat "" as
// "could not compute" and carry on, so errors are never raised into Lua.
package cryptox
