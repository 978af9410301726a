// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameBoundaries(t *testing.T) {
	// Writing N frames and concatenating equals the headers and payloads
	// interleaved, and they read back one-for-one.
	payloads := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAB}, 1000),
		[]byte("hello"),
	}

	var buf bytes.Buffer
	var want bytes.Buffer
	for _, p := range payloads {
		require.NoError(t, WriteFrame(&buf, p))

		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(p)))
		want.Write(hdr[:])
		want.Write(p)
	}
	require.Equal(t, want.Bytes(), buf.Bytes())

	for _, p := range payloads {
		got, err := ReadFrame(&buf, 1<<20)
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := ReadFrame(&buf, 1<<20)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, bytes.Repeat([]byte{1}, 64)))

	_, err := ReadFrame(&buf, 63)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncated(t *testing.T) {
	// Header promising more bytes than arrive.
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], 10)
	r := bytes.NewReader(append(hdr[:], 0x01, 0x02))

	_, err := ReadFrame(r, 1<<20)
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)

	// Header itself cut short.
	_, err = ReadFrame(bytes.NewReader([]byte{0x01, 0x02}), 1<<20)
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))
	got, err := ReadFrame(&buf, 16)
	require.NoError(t, err)
	require.Empty(t, got)
}
