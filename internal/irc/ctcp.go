package irc

import (
	"strings"
	"time"

	"gopkg.in/irc.v4"
)

const ctcpDelim = "\x01"

// parseCTCP splits a \x01COMMAND args\x01 payload. ok is false for plain text.
func parseCTCP(text string) (command, args string, ok bool) {
	if len(text) < 2 || !strings.HasPrefix(text, ctcpDelim) || !strings.HasSuffix(text, ctcpDelim) {
		return "", "", false
	}
	command, args, _ = strings.Cut(strings.Trim(text, ctcpDelim), " ")
	return strings.ToUpper(command), args, true
}

// ctcpReply builds the NOTICE payload for a CTCP query, or "" if we ignore it
func ctcpReply(command, args, version string, now time.Time) string {
	switch command {
	case "VERSION":
		return ctcpDelim + "VERSION jolt " + version + ctcpDelim
	case "PING":
		return ctcpDelim + "PING " + args + ctcpDelim
	case "TIME":
		return ctcpDelim + "TIME " + now.Format(time.RFC1123) + ctcpDelim
	default:
		return ""
	}
}

// handleCTCP answers CTCP queries. It returns the text to process as a
// regular message: the action text for ACTION, "" when fully handled.
func (cm *ConnectionManager) handleCTCP(msg *irc.Message) (text string, isCTCP bool) {
	command, args, ok := parseCTCP(msg.Trailing())
	if !ok {
		return "", false
	}

	if command == "ACTION" {
		return args, true
	}

	if reply := ctcpReply(command, args, cm.version, time.Now()); reply != "" {
		cm.logger.Info("CTCP %s from %s", command, msg.Name)
		if err := cm.client.SendNotice(msg.Name, reply); err != nil {
			cm.logger.Error("Failed to answer CTCP %s: %v", command, err)
		}
	}
	return "", true
}
