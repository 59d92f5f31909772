package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelmates/match-server-go/internal/util"
)

func TestGenerateSessionCode(t *testing.T) {
	t.Run("has expected shape", func(t *testing.T) {
		code, err := generateSessionCode()
		require.NoError(t, err)
		assert.Len(t, code, sessionCodeLength)
		assert.True(t, util.IsValidSessionCode(code), "generated code %q should validate", code)
	})

	t.Run("uses only the unambiguous alphabet", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code, err := generateSessionCode()
			require.NoError(t, err)
			for _, c := range code {
				assert.True(t, strings.ContainsRune(sessionCodeChars, c),
					"code %q contains %q outside the alphabet", code, c)
			}
		}
	})

	t.Run("never emits lookalike characters", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code, err := generateSessionCode()
			require.NoError(t, err)
			assert.NotContains(t, code, "O")
			assert.NotContains(t, code, "I")
			assert.NotContains(t, code, "0")
			assert.NotContains(t, code, "1")
		}
	})

	t.Run("codes vary", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			code, err := generateSessionCode()
			require.NoError(t, err)
			seen[code] = true
		}
		// 32^4 combinations; 50 draws colliding down to a handful would
		// mean broken randomness.
		assert.Greater(t, len(seen), 40)
	})
}

func TestRandomSeed(t *testing.T) {
	a := randomSeed()
	b := randomSeed()
	// Non-deterministic values; equality would be astronomically unlikely.
	assert.NotEqual(t, a, b)
}
