package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyPaymentCallback(t *testing.T) {
	sig := SignPaymentCallback("topsecret", "txn-1", "gw-99")
	assert.True(t, VerifyPaymentCallback("topsecret", "txn-1", "gw-99", sig))
}

func TestVerifyPaymentCallbackRejectsTamperedPayload(t *testing.T) {
	sig := SignPaymentCallback("topsecret", "txn-1", "gw-99")
	assert.False(t, VerifyPaymentCallback("topsecret", "txn-2", "gw-99", sig))
	assert.False(t, VerifyPaymentCallback("topsecret", "txn-1", "gw-00", sig))
}

func TestVerifyPaymentCallbackRejectsWrongSecret(t *testing.T) {
	sig := SignPaymentCallback("topsecret", "txn-1", "gw-99")
	assert.False(t, VerifyPaymentCallback("othersecret", "txn-1", "gw-99", sig))
}

func TestVerifyPaymentCallbackRejectsSwappedFields(t *testing.T) {
	// The delimiter keeps "ab|c" and "a|bc" from signing identically.
	sig := SignPaymentCallback("topsecret", "ab", "c")
	assert.False(t, VerifyPaymentCallback("topsecret", "a", "bc", sig))
}
