package irc

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// queuer is the outbound queue a Notifier writes to
type queuer interface {
	QueueMessage(target, message string) error
}

// Notifier sends replies through the rate-limited outbound queue
type Notifier struct {
	queue     queuer
	maxLength int
}

// NewNotifier creates a notifier; lines longer than maxLength bytes are cut
func NewNotifier(queue queuer, maxLength int) *Notifier {
	return &Notifier{queue: queue, maxLength: maxLength}
}

// Reply queues text for target (a channel or a nick)
func (n *Notifier) Reply(ctx context.Context, target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("reply has no target")
	}
	if err := n.queue.QueueMessage(target, truncate(text, n.maxLength)); err != nil {
		return fmt.Errorf("failed to queue reply to %s: %w", target, err)
	}
	return nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
