package service

import "github.com/hungvu25/Web-chat-HungVu/internal/event"

// Notifier is the fan-out surface the services publish through. The hub
// implements it in-process; the interface exists so a broker-backed
// implementation could replace it without touching any caller, and so
// tests can record what would have been pushed.
//
// Every publish is fire-and-forget: by the time a service calls it the
// state change is already persisted, so a dropped event degrades to
// "delayed until the next fetch", never "lost".
type Notifier interface {
	Publish(topic string, ev event.WsEvent)
	Broadcast(ev event.WsEvent)
}
