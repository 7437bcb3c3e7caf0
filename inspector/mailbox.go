package inspector

import (
	"sync"

	"pkg.world.dev/world-engine/inspector/command"
	"pkg.world.dev/world-engine/inspector/tracker"
)

// ClientID identifies one connected client.
type ClientID string

// Deliver hands a client's events for one step to the transport. An error disconnects the client.
type Deliver func(events []tracker.Event) error

// Reply receives the outcome of a command.
type Reply func(result any, err error)

type messageKind uint8

const (
	messageConnect messageKind = iota + 1
	messageCommand
	messageDisconnect
	messageCall
)

type message struct {
	kind    messageKind
	client  ClientID
	deliver Deliver
	command command.Command
	reply   Reply
	call    func(*Inspector)
}

// Mailbox queues requests from transport goroutines until the step loop drains them. It is the only
// part of the inspector that is safe for concurrent use.
type Mailbox struct {
	mu       sync.Mutex
	messages []message
}

func newMailbox() *Mailbox {
	return &Mailbox{messages: make([]message, 0)}
}

// Connect registers a client. Its first scan happens at the next step.
func (m *Mailbox) Connect(client ClientID, deliver Deliver) {
	m.push(message{kind: messageConnect, client: client, deliver: deliver})
}

// Submit queues a command. Commands run before the step's scans, in arrival order.
func (m *Mailbox) Submit(client ClientID, cmd command.Command, reply Reply) {
	m.push(message{kind: messageCommand, client: client, command: cmd, reply: reply})
}

// Disconnect schedules the removal of a client.
func (m *Mailbox) Disconnect(client ClientID) {
	m.push(message{kind: messageDisconnect, client: client})
}

// Call runs fn on the step loop, before the step's commands.
func (m *Mailbox) Call(fn func(*Inspector)) {
	m.push(message{kind: messageCall, call: fn})
}

func (m *Mailbox) push(msg message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *Mailbox) drain() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.messages
	m.messages = make([]message, 0, len(out))
	return out
}
