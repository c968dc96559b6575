package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDataRoundTrip(t *testing.T) {
	p := Packet{
		Header: Header{
			Type:   Data,
			ID:     42,
			Offset: 7,
		},
		Payload: []byte("hello eftp"),
	}

	raw := Encode(p)
	assert.Equal(t, HeaderLen+len(p.Payload), len(raw))

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Data, got.Header.Type)
	assert.Equal(t, uint16(42), got.Header.ID)
	assert.Equal(t, uint16(7), got.Header.Offset)
	assert.Equal(t, p.Payload, got.Payload)
}

func TestEncodeDecodeDataEndRoundTrip(t *testing.T) {
	p := Packet{
		Header:  Header{Type: DataEnd, ID: 1, Offset: 3},
		Payload: []byte("tail"),
	}
	raw := Encode(p)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, DataEnd, got.Header.Type)
	assert.Equal(t, p.Payload, got.Payload)
}

func TestEncodeAckIgnoresPayload(t *testing.T) {
	p := Packet{
		Header:  Header{Type: Ack, ID: 9, Offset: 5},
		Payload: []byte("should not appear"),
	}
	raw := Encode(p)
	assert.Len(t, raw, HeaderLen)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Ack, got.Header.Type)
	assert.Empty(t, got.Payload)
}

func TestDecodeAckTruncatesOversizedFrame(t *testing.T) {
	raw := Encode(Packet{Header: Header{Type: Ack, ID: 1, Offset: 1}})
	padded := append(raw, 0, 0, 0, 0)

	got, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, Ack, got.Header.Type)
}

func TestDecodeDataStripsEthernetPadding(t *testing.T) {
	raw := Encode(Packet{
		Header:  Header{Type: Data, ID: 1, Offset: 0},
		Payload: []byte("x"),
	})
	padded := append(raw, make([]byte, 50)...)

	got, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got.Payload)
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	raw := Encode(Packet{Header: Header{Type: Data, ID: 1}, Payload: []byte("abc")})
	raw[2] = 99 // corrupt TotalLength low byte
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	raw := Encode(Packet{Header: Header{Type: Data, ID: 1}, Payload: []byte("abc")})
	raw[0] = 77
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "DATA", Data.String())
	assert.Equal(t, "DATA_END", DataEnd.String())
	assert.Equal(t, "ACK", Ack.String())
}
