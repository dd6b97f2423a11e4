package issuer

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQRIssuer(t *testing.T) {
	_, err := NewQRIssuer("not a url", 0)
	assert.Error(t, err)

	q, err := NewQRIssuer("https://clips.example.com/", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://clips.example.com/upload/CUST01", q.UploadURL("CUST01"))
}

func TestIssueProducesPNG(t *testing.T) {
	q, err := NewQRIssuer("http://127.0.0.1:8080", 128)
	require.NoError(t, err)

	data, err := q.Issue("CUST01J1Z3K8")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, img.Bounds().Dx(), 128)

	_, err = q.Issue(" ")
	assert.Error(t, err)
}
