package server

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/inspector"
	"pkg.world.dev/world-engine/inspector/tracker"
)

const localStreamRequest = "stream_request"

// upgrade validates the stream request carried in the body query parameter before the websocket
// handshake completes.
func (s *Server) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	req, err := parseRequest([]byte(c.Query("body")))
	if err == nil && req.Method != MethodStream {
		err = eris.Wrapf(ErrInvalidRequest, "expected method %s, got %q", MethodStream, req.Method)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse(req.ID, err))
	}
	c.Locals(localStreamRequest, req)
	return c.Next()
}

// stream is one client's session. Writes happen on a dedicated goroutine fed by a bounded queue;
// the step loop never blocks on a client.
func (s *Server) stream(conn *websocket.Conn) {
	req, _ := conn.Locals(localStreamRequest).(Request)
	client := inspector.ClientID(uuid.NewString())
	st := &stream{
		conn:   conn,
		out:    make(chan []byte, s.options.StreamBuffer),
		done:   make(chan struct{}),
		logger: s.logger.With().Str("client", string(client)).Logger(),
	}

	s.track(conn)
	defer s.untrack(conn)

	s.mailbox.Connect(client, func(events []tracker.Event) error {
		return st.send(Response{ID: req.ID, Result: events})
	})
	st.logger.Info().Msg("stream opened")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		st.writeLoop()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			st.logger.Debug().Err(err).Msg("stream read ended")
			break
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.handleFrame(client, st, data)
	}

	st.shutdown()
	s.mailbox.Disconnect(client)
	wg.Wait()
	st.logger.Info().Msg("stream closed")
}

// handleFrame answers one JSON-RPC request received on a stream. The reply is queued behind any
// events already waiting for the client.
func (s *Server) handleFrame(client inspector.ClientID, st *stream, data []byte) {
	req, err := parseRequest(data)
	if err == nil {
		err = s.submit(client, req, func(result any, err error) {
			if sendErr := st.send(resultResponse(req.ID, result, err)); sendErr != nil {
				st.logger.Debug().Err(sendErr).Str("method", req.Method).Msg("dropped reply")
			}
		})
	}
	if err != nil {
		if sendErr := st.send(errorResponse(req.ID, err)); sendErr != nil {
			st.logger.Debug().Err(sendErr).Msg("dropped error reply")
		}
	}
}

type stream struct {
	conn      *websocket.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// send queues a response without blocking. A full queue closes the stream.
func (st *stream) send(resp Response) error {
	data, err := codec.Marshal(resp)
	if err != nil {
		return err
	}
	select {
	case <-st.done:
		return ErrStreamClosed
	default:
	}
	select {
	case st.out <- data:
		return nil
	default:
		st.logger.Warn().Msg("client is too slow, closing stream")
		st.shutdown()
		return ErrSlowClient
	}
}

func (st *stream) writeLoop() {
	for {
		select {
		case <-st.done:
			return
		case data := <-st.out:
			if err := st.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				st.logger.Debug().Err(err).Msg("failed to set write deadline")
			}
			if err := st.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				st.logger.Debug().Err(err).Msg("failed to write to stream")
				st.shutdown()
				return
			}
		}
	}
}

// shutdown stops the writer and unblocks the reader. It is safe to call more than once.
func (st *stream) shutdown() {
	st.closeOnce.Do(func() {
		close(st.done)
		if err := st.conn.Close(); err != nil {
			st.logger.Debug().Err(err).Msg("failed to close stream")
		}
	})
}
