//go:build !cgo

package backend

import (
	"errors"

	"go.uber.org/zap"
)

var errMuPDFUnavailable = errors.New("MuPDF backend requires a cgo build")

func newMuPDF(_ *zap.Logger) (Backend, error) {
	return nil, errMuPDFUnavailable
}
