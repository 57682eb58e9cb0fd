package pagecapture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductURL(t *testing.T) {
	c := New("", nil)

	got, err := c.ProductURL("3017620422003")
	require.NoError(t, err)
	assert.Equal(t, "https://world.openfoodfacts.org/product/3017620422003", got)

	got, err = New("http://localhost:8080/", nil).ProductURL("00-626061")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/product/00626061", got)

	_, err = c.ProductURL("abc")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCapture_RejectsInvalidCodeBeforeLaunchingBrowser(t *testing.T) {
	_, err := New("", nil).Capture(context.Background(), "---")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestContentType(t *testing.T) {
	c := New("", nil)
	assert.Equal(t, PNGQuality, c.Quality)
	assert.Equal(t, "image/png", c.ContentType())
	assert.Equal(t, ".png", c.Ext())

	c.Quality = 80
	assert.Equal(t, "image/jpeg", c.ContentType())
	assert.Equal(t, ".jpg", c.Ext())
}
