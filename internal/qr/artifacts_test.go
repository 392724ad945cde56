package qr_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/internal/qr"
)

func gradientFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*255/w + y*255/h) / 2)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestRegisterRendersArtifact(t *testing.T) {
	store := setupArtifactStore(t)

	result, err := store.Register("carol", "c@x.edu")
	require.NoError(t, err)
	assert.Equal(t, qr.RegistrationOK, result.Status)
	assert.Equal(t, qr.Token{Username: "carol", Email: "c@x.edu"}, result.Token)

	artifact, err := store.Retrieve("c@x.edu")
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "carol", artifact.Username)
	assert.Equal(t, `{"username":"carol","email":"c@x.edu"}`, artifact.Payload)
	assert.NotEmpty(t, artifact.PNG)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	store := setupArtifactStore(t)

	_, err := store.Register("carol", "c@x.edu")
	require.NoError(t, err)

	// Same email under a different username is still a duplicate.
	result, err := store.Register("caroline", "c@x.edu")
	require.NoError(t, err)
	assert.Equal(t, qr.RegistrationDuplicateEmail, result.Status)

	// The original artifact is untouched.
	artifact, err := store.Retrieve("c@x.edu")
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "carol", artifact.Username)
}

func TestRegisterRequiresBothFields(t *testing.T) {
	store := setupArtifactStore(t)

	_, err := store.Register("", "c@x.edu")
	assert.Error(t, err)

	_, err = store.Register("carol", "")
	assert.Error(t, err)
}

func TestRetrieveAbsentIsNil(t *testing.T) {
	store := setupArtifactStore(t)

	artifact, err := store.Retrieve("nobody@x.edu")
	require.NoError(t, err)
	assert.Nil(t, artifact)
}
