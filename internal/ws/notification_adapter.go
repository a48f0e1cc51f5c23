package ws

import (
	"context"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
)

// Notifier пересылает уведомления эскроу в websocket получателя.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Notify(ctx context.Context, note gateway.Notification) error {
	return n.hub.BroadcastToUser(note.RecipientID, string(note.Kind), note.Context)
}
