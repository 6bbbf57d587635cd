package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
)

// MaxBodyBytes caps the size of a decoded JSON request body.
const MaxBodyBytes = 1 << 20

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	// Request is the underlying http.Request.
	*http.Request
}

// DecodeBody decodes a single JSON document from the body into dst.
//
// Unknown fields, trailing data, bodies over MaxBodyBytes and wrong JSON types
// are all rejected with an invalid-format error carrying msgs[0], if given.
func (r *Request) DecodeBody(dst any, msgs ...string) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat(msgs...)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat(msgs...)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat(msgs...)
	}

	return nil
}
