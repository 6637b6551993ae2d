// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package sec

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// # OAuth State Signing
//
// The OAuth flow never stores state server-side. Forgery is prevented by an
// HMAC signature over a random nonce; replay risk is bounded to the
// network-visible callback window.

// stateNonceLength is the byte length of the random state nonce.
const stateNonceLength = 32

// NewStateNonce generates the random nonce half of a signed OAuth state.
func NewStateNonce() (string, error) {
	return RandomSecret(stateNonceLength)
}

// SignState produces "nonce.hexsig" where hexsig is HMAC-SHA256(nonce) under
// the server secret.
func SignState(nonce string, serverSecret []byte) string {
	mac := hmac.New(sha256.New, serverSecret)
	mac.Write([]byte(nonce))
	return nonce + "." + hex.EncodeToString(mac.Sum(nil))
}

// VerifyState checks a signed state parameter and returns the embedded nonce.
//
// The signature comparison is constant-time. A malformed value, a missing
// separator, or any signature mismatch all return ok=false; callers surface
// a single "invalid state" failure regardless of cause.
func VerifyState(signedState string, serverSecret []byte) (nonce string, ok bool) {

	// Split on the LAST separator: the nonce itself is hex and cannot contain
	// one, but tolerating it keeps the parser total.
	separator := strings.LastIndex(signedState, ".")
	if separator <= 0 || separator == len(signedState)-1 {
		return "", false
	}

	nonce = signedState[:separator]
	signature := signedState[separator+1:]

	mac := hmac.New(sha256.New, serverSecret)
	mac.Write([]byte(nonce))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !ConstantTimeEquals(signature, expected) {
		return "", false
	}

	return nonce, true
}
