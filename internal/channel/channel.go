package channel

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxNameLength bounds channel names
	MaxNameLength = 100

	// GlobalChannel is readable by any authenticated user
	GlobalChannel = "global"

	userPrefix = "user."
)

// Ephemeral channel prefixes; these channels are removed from the registry
// when the last subscriber leaves.
var ephemeralPrefixes = []string{"strategy.", "backtest.", "forge.job."}

// Built-in public channels open to any authenticated user
var builtinPublicChannels = map[string]bool{
	"trade":        true,
	"candles":      true,
	"sys":          true,
	"rsi":          true,
	"extrema":      true,
	"analysis":     true,
	"subscription": true,
	"payment":      true,
	"deposit":      true,
}

var nameRegexp = regexp.MustCompile(`^[a-z0-9.\-]+$`)

// ErrInvalidName is returned for channel names that fail validation
var ErrInvalidName = errors.New("invalid channel name")

// Name is a validated channel name. Construct it with Parse; two equal names
// compare equal and hash identically.
type Name string

// Parse validates a raw channel string
func Parse(raw string) (Name, error) {
	if raw == "" || len(raw) > MaxNameLength {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, MaxNameLength)
	}
	if !nameRegexp.MatchString(raw) {
		return "", fmt.Errorf("%w: only lowercase letters, digits, dots and hyphens are allowed", ErrInvalidName)
	}
	return Name(raw), nil
}

func (n Name) String() string {
	return string(n)
}

// IsGlobal reports whether this is the public global channel
func (n Name) IsGlobal() bool {
	return string(n) == GlobalChannel
}

// IsUserChannel reports whether this is a private per-user channel
func (n Name) IsUserChannel() bool {
	return strings.HasPrefix(string(n), userPrefix)
}

// IsEphemeral reports whether the channel is removed when its last
// subscriber leaves
func (n Name) IsEphemeral() bool {
	for _, prefix := range ephemeralPrefixes {
		if strings.HasPrefix(string(n), prefix) {
			return true
		}
	}
	return false
}

// UserID extracts the user id from a user channel name
func (n Name) UserID() (string, error) {
	if !n.IsUserChannel() {
		return "", fmt.Errorf("channel %q is not a user channel", string(n))
	}
	return strings.TrimPrefix(string(n), userPrefix), nil
}

// Authorizer decides whether a user may subscribe to a channel. It augments
// the built-in public channels with operator-configured ones and is a pure
// computation over the user id and channel name.
type Authorizer struct {
	public map[string]bool
}

// NewAuthorizer builds an authorizer; extraChannels come from configuration
// and extend the built-in public allow-list.
func NewAuthorizer(extraChannels []string) *Authorizer {
	public := make(map[string]bool, len(builtinPublicChannels)+len(extraChannels))
	for name := range builtinPublicChannels {
		public[name] = true
	}
	for _, name := range extraChannels {
		public[name] = true
	}
	return &Authorizer{public: public}
}

// Authorize applies the access rules in order: global is open to any
// authenticated user, user channels require a matching user id, ephemeral
// channels are open pending an ownership check, allow-listed public channels
// are open, everything else is denied.
func (a *Authorizer) Authorize(userID string, ch Name) bool {
	if ch.IsGlobal() {
		return true
	}
	if ch.IsUserChannel() {
		owner, err := ch.UserID()
		return err == nil && owner != "" && owner == userID
	}
	// TODO: strategy/backtest/forge.job channels should consult an ownership
	// service instead of admitting every authenticated user.
	if ch.IsEphemeral() {
		return true
	}
	return a.public[string(ch)]
}
