package qrcode

import (
	"fmt"

	qr "github.com/skip2/go-qrcode"

	"occasio/internal/domain"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

type encoder struct {
	size  int
	level qr.RecoveryLevel
}

// NewEncoder returns a QRCodeEncoder producing size x size PNG images.
func NewEncoder(size int) domain.QRCodeEncoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &encoder{size: size, level: qr.Medium}
}

func (e *encoder) Encode(payload string) ([]byte, error) {
	png, err := qr.Encode(payload, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
