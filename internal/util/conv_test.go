package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 3.8, RoundHalfUp(3.75, 1))
	assert.Equal(t, 3.2, RoundHalfUp(3.2000000000000006, 2))
	assert.Equal(t, 0.0, RoundHalfUp(0.04, 1))
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "3.8", FormatScore(3.8))
	assert.Equal(t, "5.0", FormatScore(5))
	assert.Equal(t, "0.0", FormatScore(0))
	assert.Equal(t, "3.3", FormatScore(3.25))
	assert.Equal(t, "0.3", FormatScore(0.25))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, MaxScore, Clamp(7.5, MinScore, MaxScore))
	assert.Equal(t, MinScore, Clamp(-1, MinScore, MaxScore))
	assert.Equal(t, 2.5, Clamp(2.5, MinScore, MaxScore))
}
