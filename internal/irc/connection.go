package irc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/jolt/internal/config"
	"github.com/yourusername/jolt/internal/output"
	"gopkg.in/irc.v4"
)

const (
	registrationTimeout = 60 * time.Second
	kickRejoinDelay     = 30 * time.Second
)

// PrivMsg is a PRIVMSG addressed to a channel we are in or to us directly
type PrivMsg struct {
	Nick     string
	Hostmask string // user@host
	Target   string
	Text     string
	IsPM     bool
	Mentions []string
}

// PrivMsgHandler receives PRIVMSGs on the read loop goroutine; it must not block
type PrivMsgHandler func(PrivMsg)

// ConnectionManager owns registration, nick handling and PRIVMSG dispatch
type ConnectionManager struct {
	client  *Client
	auth    *Authenticator
	config  *config.Config
	logger  output.Logger
	version string

	mu              sync.RWMutex
	registered      bool
	currentNick     string
	altNickIndex    int
	underscoreCount int

	reconnectManager *ReconnectionManager
	privMsgHandler   PrivMsgHandler
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(cfg *config.Config, logger output.Logger, version string) *ConnectionManager {
	client := NewClient(cfg.Server, logger)

	cm := &ConnectionManager{
		client:       client,
		auth:         NewAuthenticator(cfg.Auth, logger, client),
		config:       cfg,
		logger:       logger,
		version:      version,
		currentNick:  cfg.Server.Nickname,
		altNickIndex: -1,
	}
	client.SetHandler(irc.HandlerFunc(cm.handleMessage))
	cm.reconnectManager = NewReconnectionManager(cm, cfg.Limits, logger)

	return cm
}

// Connect dials, authenticates and waits for registration.
// Run must already be running so registration replies are read.
func (cm *ConnectionManager) Connect() error {
	cm.mu.Lock()
	cm.registered = false
	cm.currentNick = cm.config.Server.Nickname
	cm.altNickIndex = -1
	cm.underscoreCount = 0
	cm.mu.Unlock()

	if err := cm.client.Connect(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	if err := cm.auth.Authenticate(); err != nil {
		cm.logger.Error("Authentication failed: %v", err)
		return fmt.Errorf("authentication failed: %w", err)
	}

	deadline := time.After(registrationTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("registration timed out after %v", registrationTimeout)
		case <-cm.client.Context().Done():
			return cm.client.Context().Err()
		case <-ticker.C:
			if cm.IsRegistered() {
				cm.logger.Success("Registration complete")
				return nil
			}
		}
	}
}

// Run drives the IRC event loop until Quit
func (cm *ConnectionManager) Run() error {
	return cm.client.Run()
}

// Quit leaves the network and stops reconnecting
func (cm *ConnectionManager) Quit(message string) error {
	cm.reconnectManager.Stop()
	return cm.client.Quit(message)
}

// StartReconnectionManager starts watching for a lost connection
func (cm *ConnectionManager) StartReconnectionManager() {
	cm.reconnectManager.Start()
	cm.logger.Info("Reconnection manager started")
}

// Disconnect closes the socket without quitting
func (cm *ConnectionManager) Disconnect() error {
	return cm.client.Disconnect()
}

// GetClient returns the underlying IRC client
func (cm *ConnectionManager) GetClient() *Client {
	return cm.client
}

// IsConnected returns whether the client is connected
func (cm *ConnectionManager) IsConnected() bool {
	return cm.client.IsConnected()
}

// IsRegistered reports whether the server has welcomed us
func (cm *ConnectionManager) IsRegistered() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.registered
}

// GetCurrentNick returns the nickname in use
func (cm *ConnectionManager) GetCurrentNick() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.currentNick
}

// SetPrivMsgHandler sets the callback for PRIVMSG events
func (cm *ConnectionManager) SetPrivMsgHandler(handler PrivMsgHandler) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.privMsgHandler = handler
}

func (cm *ConnectionManager) handleMessage(_ *irc.Client, msg *irc.Message) {
	if !cm.IsRegistered() {
		cm.logger.Debug("IRC message during registration: %s %v", msg.Command, msg.Params)
	}

	cm.auth.HandleSASLMessage(msg)

	switch msg.Command {
	case "001": // RPL_WELCOME
		cm.logger.Success("Welcome message received: %s", msg.Trailing())
		cm.setRegistered()

	case "376", "422": // RPL_ENDOFMOTD, ERR_NOMOTD
		cm.setRegistered()
		go cm.joinChannels()

	case "433": // ERR_NICKNAMEINUSE
		cm.handleNicknameInUse()

	case "474": // ERR_BANNEDFROMCHAN
		if len(msg.Params) >= 2 {
			cm.logger.Warning("Banned from %s, not rejoining", msg.Params[1])
		}

	case "NICK":
		cm.handleNickChange(msg)

	case "QUIT":
		if msg.Name == cm.config.Server.Nickname {
			cm.reclaimPrimaryNick()
		}

	case "KICK":
		cm.handleKick(msg)

	case "PRIVMSG":
		cm.handlePrivMsg(msg)

	case "NOTICE":
		cm.logger.Debug("Notice from %s: %s", msg.Name, msg.Trailing())

	case "ERROR":
		cm.logger.Error("IRC Error: %s", msg.Trailing())
	}
}

func (cm *ConnectionManager) setRegistered() {
	cm.mu.Lock()
	cm.registered = true
	cm.mu.Unlock()
}

func (cm *ConnectionManager) joinChannels() {
	for _, channel := range cm.config.Bot.Channels {
		if err := cm.client.JoinChannel(channel); err != nil {
			cm.logger.Error("Failed to join %s: %v", channel, err)
		}
	}
}

// nextNick picks the nick to try after a collision: alternatives in order,
// then the primary nick with a growing run of underscores
func (cm *ConnectionManager) nextNick() string {
	alts := cm.config.Server.AltNicknames
	if cm.altNickIndex < len(alts)-1 {
		cm.altNickIndex++
		return alts[cm.altNickIndex]
	}
	cm.underscoreCount++
	return cm.config.Server.Nickname + strings.Repeat("_", cm.underscoreCount)
}

func (cm *ConnectionManager) handleNicknameInUse() {
	cm.mu.Lock()
	cm.logger.Warning("Nickname %s is in use", cm.currentNick)
	newNick := cm.nextNick()
	cm.currentNick = newNick
	cm.mu.Unlock()

	cm.logger.Info("Trying nickname: %s", newNick)
	if err := cm.client.Write(&irc.Message{Command: "NICK", Params: []string{newNick}}); err != nil {
		cm.logger.Error("Failed to change nickname: %v", err)
	}
}

func (cm *ConnectionManager) handleNickChange(msg *irc.Message) {
	if len(msg.Params) == 0 {
		return
	}
	oldNick, newNick := msg.Name, msg.Params[0]
	primary := cm.config.Server.Nickname

	cm.mu.Lock()
	if strings.EqualFold(oldNick, cm.currentNick) {
		cm.currentNick = newNick
		if newNick == primary {
			cm.altNickIndex = -1
			cm.underscoreCount = 0
		}
		cm.mu.Unlock()
		cm.logger.Success("Nickname changed to: %s", newNick)
		return
	}
	cm.mu.Unlock()

	if oldNick == primary {
		cm.reclaimPrimaryNick()
	}
}

func (cm *ConnectionManager) reclaimPrimaryNick() {
	primary := cm.config.Server.Nickname
	if cm.GetCurrentNick() == primary || !cm.IsRegistered() {
		return
	}

	cm.logger.Info("Primary nickname %s may be available, attempting to reclaim...", primary)
	if err := cm.client.Write(&irc.Message{Command: "NICK", Params: []string{primary}}); err != nil {
		cm.logger.Error("Failed to reclaim primary nickname: %v", err)
	}
}

func (cm *ConnectionManager) handleKick(msg *irc.Message) {
	if len(msg.Params) < 2 || !strings.EqualFold(msg.Params[1], cm.GetCurrentNick()) {
		return
	}
	channel := msg.Params[0]
	cm.logger.Warning("Kicked from %s: %s (rejoining in %v)", channel, msg.Trailing(), kickRejoinDelay)

	time.AfterFunc(kickRejoinDelay, func() {
		if !cm.IsConnected() {
			return
		}
		if err := cm.client.JoinChannel(channel); err != nil {
			cm.logger.Error("Failed to rejoin %s: %v", channel, err)
		}
	})
}

func (cm *ConnectionManager) handlePrivMsg(msg *irc.Message) {
	if len(msg.Params) < 2 {
		return
	}

	text := msg.Trailing()
	if action, isCTCP := cm.handleCTCP(msg); isCTCP {
		if action == "" {
			return
		}
		text = action
	}

	cm.mu.RLock()
	handler := cm.privMsgHandler
	current := cm.currentNick
	cm.mu.RUnlock()

	if handler == nil || strings.EqualFold(msg.Name, current) {
		return
	}

	target := msg.Params[0]
	handler(PrivMsg{
		Nick:     msg.Name,
		Hostmask: msg.User + "@" + msg.Host,
		Target:   target,
		Text:     text,
		IsPM:     strings.EqualFold(target, current),
		Mentions: ExtractMentions(text),
	})
}
