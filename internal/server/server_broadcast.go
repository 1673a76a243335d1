package server

// Broadcast queues msg for every connected client.
// This method is non-blocking; if the hub is stopped it does nothing.
func (h *Hub) Broadcast(msg Message) {
	// Hold RLock through the send so Stop cannot close the channel under us.
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	// A full channel drops the message rather than blocking the handler
	// that produced it.
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("type", string(msg.Type)).Msg("broadcast channel full, dropping message")
	}
}

// runBroadcaster reads from the broadcast channel and sends to all clients.
// It runs in its own goroutine started by NewHub and exits when Stop closes
// the channel.
func (h *Hub) runBroadcaster() {
	for msg := range h.broadcast {
		h.mu.RLock()
		for client := range h.clients {
			select {
			case <-client.done:
				// Client is shutting down.
			case client.send <- msg:
			default:
				// Slow client: drop this message for it only.
				h.log.Warn().Str("type", string(msg.Type)).Msg("client send buffer full, dropping message")
			}
		}
		h.mu.RUnlock()
	}
}
