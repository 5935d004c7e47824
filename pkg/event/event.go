// Package event defines the event surface to the embedder and a simple
// fan-out Dispatcher (spec.md §6 "Event surface to the embedder").
package event

import (
	"sync"

	"github.com/prose-im/prose-core-client-go/pkg/jidutil"
)

// ClientEventKind tags account/connection-scoped events.
type ClientEventKind string

const (
	ConnectionStatusChanged ClientEventKind = "connection_status_changed"
	ContactChanged          ClientEventKind = "contact_changed"
	SidebarChanged          ClientEventKind = "sidebar_changed"
	AccountInfoChanged      ClientEventKind = "account_info_changed"
)

// ClientEvent is an account-scoped event (spec.md §6).
type ClientEvent struct {
	Kind ClientEventKind
	Err  error // set on ConnectionStatusChanged{Disconnected{error?}}
}

// ClientRoomEventKind tags per-room events.
type ClientRoomEventKind string

const (
	MessagesAppended    ClientRoomEventKind = "messages_appended"
	MessagesUpdated     ClientRoomEventKind = "messages_updated"
	MessagesDeleted     ClientRoomEventKind = "messages_deleted"
	AttributesChanged   ClientRoomEventKind = "attributes_changed"
	ParticipantsChanged ClientRoomEventKind = "participants_changed"
)

// ClientRoomEvent is a per-room event (spec.md §6).
type ClientRoomEvent struct {
	Room jidutil.RoomID
	Kind ClientRoomEventKind
	IDs  []string // message ids, populated for MessagesAppended/Updated/Deleted
}

// Dispatcher fans out ClientEvent/ClientRoomEvent to registered listeners.
// Listeners are invoked synchronously in registration order; a listener
// that blocks blocks the caller, matching the cooperative scheduling model
// (spec.md §5 "Scheduling model").
type Dispatcher struct {
	mu            sync.RWMutex
	clientListeners []func(ClientEvent)
	roomListeners   []func(ClientRoomEvent)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) OnClientEvent(fn func(ClientEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clientListeners = append(d.clientListeners, fn)
}

func (d *Dispatcher) OnRoomEvent(fn func(ClientRoomEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roomListeners = append(d.roomListeners, fn)
}

func (d *Dispatcher) EmitClient(ev ClientEvent) {
	d.mu.RLock()
	listeners := append([]func(ClientEvent){}, d.clientListeners...)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (d *Dispatcher) EmitRoom(ev ClientRoomEvent) {
	d.mu.RLock()
	listeners := append([]func(ClientRoomEvent){}, d.roomListeners...)
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}
