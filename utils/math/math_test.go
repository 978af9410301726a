// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestISqrt(t *testing.T) {
	for n := 0; n <= 2048; n++ {
		s := ISqrt(n)
		require.LessOrEqual(t, s*s, n)
		require.Greater(t, (s+1)*(s+1), n)
	}
}

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 0, CeilDiv(0, 8))
	require.Equal(t, 1, CeilDiv(1, 8))
	require.Equal(t, 1, CeilDiv(8, 8))
	require.Equal(t, 2, CeilDiv(9, 8))
}

func TestMinMax(t *testing.T) {
	require.Equal(t, uint32(3), Max(1, 3))
	require.Equal(t, uint32(1), Min(1, 3))
}
