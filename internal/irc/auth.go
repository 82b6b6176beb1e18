package irc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/jolt/internal/config"
	"github.com/yourusername/jolt/internal/output"
	"gopkg.in/irc.v4"
)

var errSASLRejected = errors.New("SASL step rejected")

// Authenticator handles SASL PLAIN with a NickServ fallback
type Authenticator struct {
	auth   config.AuthConfig
	logger output.Logger
	client *Client

	// steps carries the outcome of each SASL exchange from the read loop
	steps   chan bool
	timeout time.Duration
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(auth config.AuthConfig, logger output.Logger, client *Client) *Authenticator {
	return &Authenticator{
		auth:    auth,
		logger:  logger,
		client:  client,
		steps:   make(chan bool, 1),
		timeout: 30 * time.Second,
	}
}

// Authenticate tries SASL, then NickServ. No credentials is not an error.
func (a *Authenticator) Authenticate() error {
	if a.auth.SASLUsername != "" && a.auth.SASLPassword != "" {
		a.logger.Info("Attempting SASL PLAIN authentication...")
		err := a.authenticateSASL()
		if err == nil {
			a.logger.Success("SASL authentication successful")
			return nil
		}
		a.logger.Warning("SASL authentication failed: %v", err)
	}

	if a.auth.NickServPassword != "" {
		a.logger.Info("Falling back to NickServ authentication...")
		if err := a.client.SendMessage("NickServ", "IDENTIFY "+a.auth.NickServPassword); err != nil {
			return fmt.Errorf("failed to send NickServ IDENTIFY: %w", err)
		}
		return nil
	}

	a.logger.Warning("No authentication credentials configured")
	return nil
}

func (a *Authenticator) authenticateSASL() error {
	// drop any step left over from a previous connection
	select {
	case <-a.steps:
	default:
	}

	exchange := []struct {
		name string
		msg  *irc.Message
	}{
		{"capability request", &irc.Message{Command: "CAP", Params: []string{"REQ", "sasl"}}},
		{"PLAIN initiation", &irc.Message{Command: "AUTHENTICATE", Params: []string{"PLAIN"}}},
		{"credentials", &irc.Message{Command: "AUTHENTICATE", Params: []string{a.plainCredentials()}}},
	}

	for _, step := range exchange {
		if err := a.client.Write(step.msg); err != nil {
			return fmt.Errorf("failed to send SASL %s: %w", step.name, err)
		}
		if err := a.await(step.name); err != nil {
			return err
		}
	}

	if err := a.client.Write(&irc.Message{Command: "CAP", Params: []string{"END"}}); err != nil {
		return fmt.Errorf("failed to end capability negotiation: %w", err)
	}
	return nil
}

func (a *Authenticator) await(step string) error {
	select {
	case ok := <-a.steps:
		if !ok {
			return fmt.Errorf("%s: %w", step, errSASLRejected)
		}
		return nil
	case <-time.After(a.timeout):
		return fmt.Errorf("SASL %s timed out", step)
	}
}

// plainCredentials encodes \0username\0password
func (a *Authenticator) plainCredentials() string {
	credentials := "\x00" + a.auth.SASLUsername + "\x00" + a.auth.SASLPassword
	return base64.StdEncoding.EncodeToString([]byte(credentials))
}

func (a *Authenticator) signal(ok bool) {
	select {
	case a.steps <- ok:
	default:
	}
}

// HandleSASLMessage feeds SASL replies from the read loop into the exchange
func (a *Authenticator) HandleSASLMessage(msg *irc.Message) {
	switch msg.Command {
	case "CAP":
		if len(msg.Params) >= 3 && msg.Params[1] == "ACK" && msg.Params[2] == "sasl" {
			a.signal(true)
		} else if len(msg.Params) >= 2 && msg.Params[1] == "NAK" {
			a.signal(false)
		}

	case "AUTHENTICATE":
		if len(msg.Params) >= 1 && msg.Params[0] == "+" {
			a.signal(true)
		}

	case "903": // RPL_SASLSUCCESS
		a.signal(true)

	case "904", "905", "906", "907":
		a.logger.Error("SASL authentication failed: %s", msg.Trailing())
		a.signal(false)
	}
}
