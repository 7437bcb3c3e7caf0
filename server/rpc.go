package server

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/command"
)

const jsonRPCVersion = "2.0"

const (
	MethodStream       = "inspector/stream"
	MethodPing         = "inspector/ping"
	MethodTypeRegistry = "inspector/type-registry"
	MethodComponents   = "inspector/components"
)

var (
	ErrInvalidRequest = eris.New("invalid request")
	ErrSlowClient     = eris.New("client is not keeping up with the stream")
	ErrStreamClosed   = eris.New("stream is closed")
	ErrTimeout        = eris.New("step loop did not answer in time")
)

// Request is a JSON-RPC 2.0 request. A missing ID is answered with a null ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is a JSON-RPC 2.0 response. It carries Error when set and Result otherwise.
type Response struct {
	ID     json.RawMessage
	Result any
	Error  *Error
}

func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{JSONRPC: jsonRPCVersion, ID: id, Error: r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{JSONRPC: jsonRPCVersion, ID: id, Result: r.Result})
}

func parseRequest(data []byte) (Request, error) {
	var req Request
	if len(data) == 0 {
		return req, eris.Wrap(ErrInvalidRequest, "empty request")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, eris.Wrap(ErrInvalidRequest, err.Error())
	}
	if req.JSONRPC != jsonRPCVersion {
		return req, eris.Wrapf(ErrInvalidRequest, "unsupported jsonrpc version %q", req.JSONRPC)
	}
	if req.Method == "" {
		return req, eris.Wrap(ErrInvalidRequest, "missing method")
	}
	return req, nil
}

func errorResponse(id json.RawMessage, err error) Response {
	code := command.Code(err)
	if eris.Is(err, ErrInvalidRequest) {
		code = command.CodeInvalidRequest
	}
	return Response{ID: id, Error: &Error{Code: code, Message: err.Error()}}
}

func resultResponse(id json.RawMessage, result any, err error) Response {
	if err != nil {
		return errorResponse(id, err)
	}
	return Response{ID: id, Result: result}
}
