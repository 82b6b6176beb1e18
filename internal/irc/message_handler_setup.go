package irc

import (
	"context"
	"time"

	"github.com/yourusername/jolt/internal/handler"
	"github.com/yourusername/jolt/internal/output"
)

// MessageHandler processes one inbound chat message
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg handler.InboundMessage) error
}

// SetupBotMessageHandler routes PRIVMSGs to h, one goroutine per message so
// the read loop keeps serving PING/PONG while the actuator is called.
// It must be called before Connect.
func (cm *ConnectionManager) SetupBotMessageHandler(h MessageHandler, timeout time.Duration, logger output.Logger) {
	cm.SetPrivMsgHandler(func(pm PrivMsg) {
		msg := handler.InboundMessage{
			Nick:     pm.Nick,
			Hostmask: pm.Hostmask,
			Text:     pm.Text,
			Mentions: pm.Mentions,
		}
		if !pm.IsPM {
			msg.Channel = pm.Target
		}

		go func() {
			ctx, cancel := context.WithTimeout(cm.client.Context(), timeout)
			defer cancel()

			if err := h.HandleMessage(ctx, msg); err != nil {
				logger.Error("Failed to handle message from %s: %v", pm.Nick, err)
			}
		}()
	})
}
