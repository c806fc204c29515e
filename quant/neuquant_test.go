package quant

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(n int) []byte {
	var s []byte
	for i := range n {
		s = append(s, byte(i*7), byte(255-i*3), byte(i*13))
	}
	return s
}

func TestTrainReturnsRequestedSize(t *testing.T) {
	q := NewNeuQuant(Config{SampleFactor: 1})
	pal, err := q.Train(context.Background(), gradient(1000), 16)
	require.NoError(t, err)
	assert.Len(t, pal, 16)
	assert.Len(t, q.Palette(), 16)
	for _, c := range pal {
		assert.Equal(t, uint8(0xff), c.A)
	}
}

func TestTrainFindsDominantColors(t *testing.T) {
	var s []byte
	for i := range 3000 {
		if i%2 == 0 {
			s = append(s, 250, 0, 0)
		} else {
			s = append(s, 0, 0, 250)
		}
	}
	q := NewNeuQuant(Config{SampleFactor: 1})
	pal, err := q.Train(context.Background(), s, 4)
	require.NoError(t, err)

	red := pal[q.Classify(color.RGBA{250, 0, 0, 255})]
	blue := pal[q.Classify(color.RGBA{0, 0, 250, 255})]
	assert.Greater(t, red.R, uint8(200))
	assert.Less(t, red.B, uint8(50))
	assert.Greater(t, blue.B, uint8(200))
	assert.Less(t, blue.R, uint8(50))
	assert.NotEqual(t, red, blue)
}

func TestTrainIsDeterministic(t *testing.T) {
	s := gradient(2000)
	a, err := NewNeuQuant(DefaultConfig()).Train(context.Background(), s, 32)
	require.NoError(t, err)
	b, err := NewNeuQuant(DefaultConfig()).Train(context.Background(), s, 32)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTrainNeedsSamples(t *testing.T) {
	s := gradient(100)
	_, err := NewNeuQuant(DefaultConfig()).Train(context.Background(), s, 8)
	var need *NeedSamplesError
	require.ErrorAs(t, err, &need)
	assert.Equal(t, 300, need.Have)
	assert.Equal(t, 6, need.Multiplier)

	pal, err := NewNeuQuant(DefaultConfig()).Train(context.Background(), Repeat(s, need.Multiplier), 8)
	require.NoError(t, err)
	assert.Len(t, pal, 8)
}

func TestTrainRejectsBadInput(t *testing.T) {
	q := NewNeuQuant(DefaultConfig())
	_, err := q.Train(context.Background(), gradient(1000), 1)
	assert.ErrorIs(t, err, ErrTooFewColors)
	_, err = q.Train(context.Background(), gradient(1000), 257)
	assert.ErrorIs(t, err, ErrTooFewColors)
	_, err = q.Train(context.Background(), []byte{1, 2}, 4)
	assert.Error(t, err)
	_, err = q.Train(context.Background(), nil, 4)
	assert.Error(t, err)
}

func TestTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewNeuQuant(Config{SampleFactor: 1, CheckEvery: 1})
	_, err := q.Train(ctx, gradient(2000), 16)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, q.Palette())
}

func TestNearest(t *testing.T) {
	pal := []color.RGBA{{0, 0, 0, 255}, {255, 255, 255, 255}, {200, 0, 0, 255}}
	assert.Equal(t, 0, Nearest(pal, color.RGBA{10, 10, 10, 255}))
	assert.Equal(t, 1, Nearest(pal, color.RGBA{200, 200, 200, 255}))
	assert.Equal(t, 2, Nearest(pal, color.RGBA{180, 20, 0, 255}))
	assert.Equal(t, 0, Nearest(nil, color.RGBA{}))
}

func TestRepeat(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3}, Repeat([]byte{1, 2, 3}, 2))
	assert.Equal(t, []byte{1, 2, 3}, Repeat([]byte{1, 2, 3}, 0))
}
