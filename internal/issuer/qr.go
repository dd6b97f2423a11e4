// Package issuer renders the scannable artifact handed to a customer: a QR
// code pointing at the customer's upload page.
package issuer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

type QRIssuer struct {
	baseURL string
	size    int
}

func NewQRIssuer(publicBaseURL string, size int) (*QRIssuer, error) {
	u, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid public base url %q", publicBaseURL)
	}
	if size <= 0 {
		size = 256
	}
	return &QRIssuer{baseURL: u.String(), size: size}, nil
}

// UploadURL is the link encoded in the QR code.
func (q *QRIssuer) UploadURL(code string) string {
	return q.baseURL + "/upload/" + url.PathEscape(code)
}

// Issue returns a PNG QR code for code.
func (q *QRIssuer) Issue(code string) ([]byte, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("empty access code")
	}
	png, err := qrcode.Encode(q.UploadURL(code), qrcode.Medium, q.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
