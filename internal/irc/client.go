package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yourusername/jolt/internal/config"
	"github.com/yourusername/jolt/internal/output"
	"gopkg.in/irc.v4"
)

// ErrNotConnected is returned by writes while there is no live connection
var ErrNotConnected = errors.New("not connected")

const dialTimeout = 30 * time.Second

// Client wraps an irc.v4 client and its socket
type Client struct {
	conn      *irc.Client
	rawConn   io.ReadWriteCloser
	server    config.ServerConfig
	logger    output.Logger
	handler   irc.Handler
	connected bool
	mu        sync.RWMutex

	// connectedCh wakes Run whenever a new connection is made
	connectedCh chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewClient creates a client for the given server settings
func NewClient(server config.ServerConfig, logger output.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		server:      server,
		logger:      logger,
		connectedCh: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		handler:     irc.HandlerFunc(func(*irc.Client, *irc.Message) {}),
	}
}

func (c *Client) dial(address string) (io.ReadWriteCloser, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	if !c.server.TLS {
		return dialer.Dial("tcp", address)
	}
	return tls.DialWithDialer(dialer, "tcp", address, &tls.Config{ServerName: c.server.Address})
}

// Connect opens the socket and builds the irc.v4 client around it
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	address := net.JoinHostPort(c.server.Address, strconv.Itoa(c.server.Port))
	if c.server.TLS {
		c.logger.Info("Connecting to %s with TLS...", address)
	} else {
		c.logger.Info("Connecting to %s...", address)
	}

	rawConn, err := c.dial(address)
	if err != nil {
		c.logger.Error("Failed to connect: %v", err)
		return fmt.Errorf("connection to %s failed: %w", address, err)
	}

	c.rawConn = rawConn
	c.conn = irc.NewClient(rawConn, irc.ClientConfig{
		Nick:          c.server.Nickname,
		User:          c.server.Username,
		Name:          c.server.Realname,
		Handler:       c.handler,
		PingFrequency: time.Minute,
		PingTimeout:   30 * time.Second,
	})
	c.connected = true
	select {
	case c.connectedCh <- struct{}{}:
	default:
	}

	c.logger.Success("Connected to %s", address)
	return nil
}

// Disconnect closes the socket; the client can Connect again afterwards
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	if c.rawConn != nil {
		_ = c.rawConn.Close()
	}
	c.connected = false
	c.logger.Info("Disconnected from IRC server")

	return nil
}

// markDisconnected records that the read loop of conn has ended.
// A newer connection is left alone.
func (c *Client) markDisconnected(conn *irc.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.connected = false
	}
}

// Write sends a raw IRC message
func (c *Client) Write(msg *irc.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(msg)
}

// SendMessage sends a PRIVMSG to a channel or nick
func (c *Client) SendMessage(target, message string) error {
	return c.Write(&irc.Message{
		Command: "PRIVMSG",
		Params:  []string{target, message},
	})
}

// SendNotice sends a NOTICE, used for CTCP replies
func (c *Client) SendNotice(target, message string) error {
	return c.Write(&irc.Message{
		Command: "NOTICE",
		Params:  []string{target, message},
	})
}

// JoinChannel joins an IRC channel
func (c *Client) JoinChannel(channel string) error {
	c.logger.Info("Joining channel %s", channel)
	return c.Write(&irc.Message{
		Command: "JOIN",
		Params:  []string{channel},
	})
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetHandler sets the message handler; it must be called before Connect
func (c *Client) SetHandler(handler irc.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Run drives the event loop of each connection in turn until Quit.
// Between connections it waits for the next Connect.
func (c *Client) Run() error {
	for {
		select {
		case <-c.connectedCh:
		case <-c.ctx.Done():
			return nil
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		err := conn.RunContext(c.ctx)
		c.markDisconnected(conn)
		if c.ctx.Err() != nil {
			return nil
		}
		c.logger.Warning("Connection closed: %v", err)
	}
}

// Context is cancelled by Quit
func (c *Client) Context() context.Context {
	return c.ctx
}

// Quit sends QUIT and closes the connection for good
func (c *Client) Quit(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.cancel()

	if !c.connected {
		return nil
	}

	if c.conn != nil {
		quit := &irc.Message{Command: "QUIT"}
		if message != "" {
			quit.Params = []string{message}
		}
		if err := c.conn.WriteMessage(quit); err != nil {
			c.logger.Error("Failed to send QUIT message: %v", err)
		}
		// let the server read the QUIT before the socket closes
		time.Sleep(100 * time.Millisecond)
	}

	if c.rawConn != nil {
		_ = c.rawConn.Close()
	}
	c.connected = false
	c.logger.Info("Sent QUIT message and disconnected")

	return nil
}
