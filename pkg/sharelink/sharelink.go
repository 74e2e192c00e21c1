// Package sharelink builds public affiliate share URLs and their QR codes.
package sharelink

import (
	"errors"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QR image bounds in pixels.
const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

// URL returns baseURL/p/<productID>?ref=<code>.
func URL(baseURL, productID, referralCode string) (string, error) {
	if baseURL == "" || productID == "" || referralCode == "" {
		return "", errors.New("sharelink: base url, product and referral code are required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	u = u.JoinPath("p", productID)
	q := u.Query()
	q.Set("ref", referralCode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// QR encodes link as a PNG. size is in pixels; values <= 0 use DefaultQRSize
// and the rest are clamped to [MinQRSize, MaxQRSize].
func QR(link string, size int) ([]byte, error) {
	switch {
	case size <= 0:
		size = DefaultQRSize
	case size < MinQRSize:
		size = MinQRSize
	case size > MaxQRSize:
		size = MaxQRSize
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}
