package sftypes

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInputNotFound              = errors.New("input not found")
	ErrUnsupportedFormat          = errors.New("unsupported image format")
	ErrGridMismatch               = errors.New("grid mismatch")
	ErrModelUnavailable           = errors.New("segmentation model unavailable")
	ErrInvalidPreviewSpec         = errors.New("invalid preview spec")
	ErrPreviewEncodingUnavailable = errors.New("preview encoding unavailable")
	ErrWriteFailed                = errors.New("write failed")
)

// Kind is the manifest-facing name of an error class.
type Kind string

const (
	KindNone                       Kind = ""
	KindInputNotFound              Kind = "InputNotFound"
	KindUnsupportedFormat          Kind = "UnsupportedFormat"
	KindGridMismatch               Kind = "GridMismatch"
	KindModelUnavailable           Kind = "ModelUnavailable"
	KindInvalidPreviewSpec         Kind = "InvalidPreviewSpec"
	KindPreviewEncodingUnavailable Kind = "PreviewEncodingUnavailable"
	KindWriteFailed                Kind = "WriteFailed"
	KindCanceled                   Kind = "Canceled"
	KindInternal                   Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInputNotFound, KindInputNotFound},
	{ErrUnsupportedFormat, KindUnsupportedFormat},
	{ErrGridMismatch, KindGridMismatch},
	{ErrModelUnavailable, KindModelUnavailable},
	{ErrInvalidPreviewSpec, KindInvalidPreviewSpec},
	{ErrPreviewEncodingUnavailable, KindPreviewEncodingUnavailable},
	{ErrWriteFailed, KindWriteFailed},
	{context.Canceled, KindCanceled},
	{context.DeadlineExceeded, KindCanceled},
}

// KindOf classifies err. A nil error has KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ie *InputError
	if errors.As(err, &ie) && ie.Kind != KindNone {
		return ie.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// InputError scopes a failure to one batch input.
type InputError struct {
	Input string
	Kind  Kind
	Err   error
}

// NewInputError classifies err and attaches the input it belongs to.
func NewInputError(input string, err error) *InputError {
	return &InputError{Input: input, Kind: KindOf(err), Err: err}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Input, e.Kind, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}
