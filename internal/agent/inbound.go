package agent

import "context"

// HandleInbound routes an inbound user message. Routing order matters:
// busy first, pending interrupt second, new turn last. While a turn is
// in flight, text answers an outstanding ask_user question if there is
// one (consumed, no reply), and is otherwise rejected with a
// still-working message. Idle sessions start a normal turn.
func (a *Agent) HandleInbound(ctx context.Context, chatID int64, text string) (reply string, deliver bool) {
	s := a.session(chatID)

	if s.isBusy() {
		if s.resolveInterrupt(text) {
			a.logger.Info("inbound message resolved pending question", "chat_id", chatID)
			return "", false
		}
		return stillWorkingReply, true
	}

	return a.Reply(ctx, chatID, text), true
}
