package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	body := []byte(`{"event":"payment.success","timestamp":1700000000,"data":{"id":"abc"}}`)

	sig := Sign("whsec_test", body)

	assert.Equal(t, "4841ae3e3b7a31f9083dc443f5c80f81bf179f2aef488fc5abd137284339cb3b", sig)
	assert.True(t, Verify("whsec_test", body, sig))
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"refund.processed","timestamp":1700000001,"data":{}}`)
	sig := Sign("secret", body)

	assert.True(t, Verify("secret", body, sig))
	assert.False(t, Verify("other-secret", body, sig))
	assert.False(t, Verify("secret", []byte(`tampered`), sig))
	assert.False(t, Verify("secret", body, "not-hex"))
	assert.False(t, Verify("secret", body, ""))
}

func TestEnvelope_MarshalIsSignable(t *testing.T) {
	env := Envelope{
		Event:     "payment.success",
		Timestamp: 1700000000,
		Data:      map[string]any{"id": "abc", "amount": int64(1000)},
	}

	first, err := env.Marshal()
	require.NoError(t, err)
	second, err := env.Marshal()
	require.NoError(t, err)

	// The signature covers exact bytes, so marshaling must be stable.
	assert.Equal(t, first, second)
	assert.Equal(t, Sign("s", first), Sign("s", second))
}
