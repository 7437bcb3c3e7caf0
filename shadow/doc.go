// Package shadow holds state kept outside the Store on behalf of the inspector: components that
// were disabled and must be restorable, visibility values captured before a toggle, and the last
// encoded value of volatile kinds used to suppress duplicate change events.
//
// None of the types are safe for concurrent use. They are owned by the step loop.
package shadow
