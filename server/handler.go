package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"pkg.world.dev/world-engine/inspector/command"
	"pkg.world.dev/world-engine/inspector/inspector"
	"pkg.world.dev/world-engine/inspector/tracker"
)

// httpClient is the client id under which commands sent over POST are executed.
const httpClient inspector.ClientID = "http"

type HealthResponse struct {
	IsServerRunning   bool `json:"isServerRunning"`
	IsStepLoopRunning bool `json:"isStepLoopRunning"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}

var ErrorHandler = func(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(code).JSON(ErrorResponse{Error: Error{Code: code, Message: err.Error()}})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		IsServerRunning:   true,
		IsStepLoopRunning: s.inspector.IsRunning(),
	})
}

// handleRPC answers one JSON-RPC request and waits for the step loop to process it.
func (s *Server) handleRPC(c *fiber.Ctx) error {
	req, err := parseRequest(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse(req.ID, err))
	}
	result, err := s.call(c.UserContext(), req)
	return c.JSON(resultResponse(req.ID, result, err))
}

func (s *Server) call(ctx context.Context, req Request) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	err := s.submit(httpClient, req, func(result any, err error) {
		done <- outcome{result: result, err: err}
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.options.CallTimeout)
	defer cancel()
	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, eris.Wrapf(ErrTimeout, "method %s", req.Method)
	}
}

// submit queues req on the mailbox. reply runs on the step loop.
func (s *Server) submit(client inspector.ClientID, req Request, reply inspector.Reply) error {
	switch req.Method {
	case MethodStream:
		return eris.Wrap(ErrInvalidRequest, "a stream can only be opened by a websocket upgrade")
	case MethodPing:
		s.mailbox.Call(func(*inspector.Inspector) { reply(true, nil) })
	case MethodTypeRegistry:
		s.mailbox.Call(func(i *inspector.Inspector) { reply(i.Registry().Export(), nil) })
	case MethodComponents:
		s.mailbox.Call(func(i *inspector.Inspector) { reply(tracker.DescribeComponents(i.World()), nil) })
	default:
		cmd, err := command.Parse(req.Method, req.Params)
		if err != nil {
			return err
		}
		s.mailbox.Submit(client, cmd, reply)
	}
	return nil
}
