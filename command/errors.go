package command

import (
	"errors"

	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

var (
	ErrUnknownMethod = eris.New("unknown method")
	ErrInvalidParams = eris.New("invalid params")

	ErrNotFound           = eris.New("not found")
	ErrAlreadyExists      = eris.New("already exists")
	ErrDeserialize        = eris.New("value does not match the component schema")
	ErrUnsupported        = eris.New("operation not supported for this component")
	ErrInvalidOperation   = eris.New("invalid operation")
	ErrInvariantViolation = eris.New("shadow state is out of sync with the world")
)

// JSON-RPC 2.0 error codes.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Code maps an error to the JSON-RPC error code reported to the client.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnknownMethod):
		return CodeMethodNotFound
	case errors.Is(err, ErrInvalidParams), errors.Is(err, ErrDeserialize):
		return CodeInvalidParams
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrUnsupported), errors.Is(err, ErrInvalidOperation):
		return CodeInvalidRequest
	default:
		return CodeInternalError
	}
}

// classify wraps a Store error into the command taxonomy. Errors already in the taxonomy and
// unknown errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var class error
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDeserialize),
		errors.Is(err, ErrUnsupported), errors.Is(err, ErrInvalidOperation), errors.Is(err, ErrInvariantViolation):
		return err
	case errors.Is(err, ecs.ErrEntityNotFound), errors.Is(err, ecs.ErrComponentNotFound),
		errors.Is(err, ecs.ErrComponentNotOnEntity):
		class = ErrNotFound
	case errors.Is(err, ecs.ErrComponentExists):
		class = ErrAlreadyExists
	case errors.Is(err, codec.ErrDecode):
		class = ErrDeserialize
	case errors.Is(err, ecs.ErrHierarchyCycle):
		class = ErrInvalidOperation
	case errors.Is(err, ecs.ErrResourceKind), errors.Is(err, codec.ErrNotSerializable):
		class = ErrUnsupported
	default:
		return err
	}
	return eris.Wrap(class, err.Error())
}
