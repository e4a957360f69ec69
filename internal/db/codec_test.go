package db

import (
	"testing"

	"github.com/SecareLupus/radius-virtual/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealedSession() identity.ResolvedSession {
	return identity.ResolvedSession{
		Remote: identity.RemoteIdentity{
			Username:   "alice",
			Attributes: []identity.Attribute{{Vendor: 1, Subtype: 1, Value: []byte{0xAA}}},
		},
		Local: identity.MappingRule{Username: "alice_local", UID: 2000, GID: 2000, Home: "/home/alice_local", Shell: "/bin/bash"},
	}
}

func TestCodecSealedRoundTrip(t *testing.T) {
	c, err := newCodec([]byte("at-rest secret"))
	require.NoError(t, err)
	defer c.close()

	blob, err := c.encode(sealedSession())
	require.NoError(t, err)
	assert.Equal(t, blobSealed, blob[0])
	assert.Equal(t, []byte{blobSealed}, sealedAD)

	got, err := c.decode(blob)
	require.NoError(t, err)
	assert.Equal(t, sealedSession(), got)
}

func TestCodecSealedRejectsTampering(t *testing.T) {
	c, err := newCodec([]byte("at-rest secret"))
	require.NoError(t, err)
	defer c.close()

	blob, err := c.encode(sealedSession())
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0x01
	_, err = c.decode(blob)
	assert.Error(t, err)
}

func TestCodecPlainBlobNeedsNoKey(t *testing.T) {
	plain, err := newCodec(nil)
	require.NoError(t, err)
	blob, err := plain.encode(sealedSession())
	require.NoError(t, err)
	assert.Equal(t, blobPlain, blob[0])

	sealed, err := newCodec([]byte("at-rest secret"))
	require.NoError(t, err)
	got, err := sealed.decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "alice_local", got.Local.Username)

	sealedBlob, err := sealed.encode(sealedSession())
	require.NoError(t, err)
	_, err = plain.decode(sealedBlob)
	assert.ErrorIs(t, err, errSealedNoKey)
}
