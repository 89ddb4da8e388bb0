package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// hmac256 returns the hex HMAC-SHA256 of body under key.
func hmac256(body, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// SignPaymentCallback computes the signature the gateway attaches to a
// payment callback: hex HMAC-SHA256 over "txnID|gatewayRef" under the
// shared webhook secret.
func SignPaymentCallback(secret, txnID, gatewayRef string) string {
	return hmac256([]byte(txnID+"|"+gatewayRef), []byte(secret))
}

// VerifyPaymentCallback checks a callback signature in constant time.
// A forged or rearranged payload fails here before anything is mutated.
func VerifyPaymentCallback(secret, txnID, gatewayRef, signature string) bool {
	expected := SignPaymentCallback(secret, txnID, gatewayRef)
	return hmac.Equal([]byte(signature), []byte(expected))
}
