package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomTokenLengthAndUniqueness(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestNumericOTPLength(t *testing.T) {
	otp, err := NumericOTP(6)
	require.NoError(t, err)
	assert.Len(t, otp, 6)
	for _, r := range otp {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestSHA256HexIsDeterministic(t *testing.T) {
	assert.Equal(t, SHA256HexString("hello"), SHA256HexString("hello"))
	assert.NotEqual(t, SHA256HexString("hello"), SHA256HexString("world"))
}

func TestConstantTimeEqual(t *testing.T) {
	h := SHA256HexString("secret")
	assert.True(t, ConstantTimeEqual(h, h))
	assert.False(t, ConstantTimeEqual(h, SHA256HexString("other")))
	assert.False(t, ConstantTimeEqual(h, h[:len(h)-1]))
}

func TestObjectKey(t *testing.T) {
	digest := SHA256HexString("file contents")
	key, err := ObjectKey("bucket-prefix", digest)
	require.NoError(t, err)
	assert.Equal(t, "bucket-prefix/objects/sha256/"+digest[0:2]+"/"+digest[2:4]+"/"+digest, key)

	key, err = ObjectKey("", digest)
	require.NoError(t, err)
	assert.Equal(t, "objects/sha256/"+digest[0:2]+"/"+digest[2:4]+"/"+digest, key)

	_, err = ObjectKey("p", "ab")
	assert.Error(t, err)
}
