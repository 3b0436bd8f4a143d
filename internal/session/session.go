// Package session establishes a hosted or joined peer session on top of a
// peer.Transport and keeps the session context that the games share.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
)

const (
	PrefixOX   = "srinath-ox-"
	PrefixDino = "srinath-dino-"

	DefaultConnectTimeout = 15 * time.Second
	DefaultMaxAttempts    = 8
)

type Role string

const (
	RoleHost   Role = "host"
	RoleJoiner Role = "joiner"
)

type Options struct {
	// Prefix namespaces human codes per application.
	Prefix         string
	ConnectTimeout time.Duration
	// MaxAttempts bounds code regeneration on identity collisions.
	MaxAttempts  int
	GenerateCode func() string
	Logger       *slog.Logger
}

func (that Options) withDefaults() Options {
	if that.ConnectTimeout <= 0 {
		that.ConnectTimeout = DefaultConnectTimeout
	}
	if that.MaxAttempts <= 0 {
		that.MaxAttempts = DefaultMaxAttempts
	}
	if that.GenerateCode == nil {
		that.GenerateCode = pkg.GeneratePeerCode
	}
	if that.Logger == nil {
		that.Logger = slog.Default()
	}
	return that
}

// Session - everything a game needs to know about the connection it runs on.
type Session struct {
	Code   string
	SelfID string
	Role   Role

	transport peer.Transport

	closeOnce sync.Once
	closes    observer.List[struct{}]
}

// Host - claims a fresh code and waits for joiners. Collisions regenerate the
// code; any other failure ends the attempt.
func Host(ctx context.Context, transport peer.Transport, options Options) (*Session, error) {
	options = options.withDefaults()
	log := options.Logger.With("method", "Host")

	ctx, cancel := context.WithTimeout(ctx, options.ConnectTimeout)
	defer cancel()

	for attempt := 1; attempt <= options.MaxAttempts; attempt++ {
		code := options.GenerateCode()

		id, err := transport.Open(ctx, Namespace(options.Prefix, code))
		if errors.Is(err, apperror.ErrIdentityTaken) {
			log.Info("code already in use, regenerating", "code", code, "attempt", attempt)
			continue
		}

		if err != nil {
			return nil, connectError(ctx, err)
		}

		log.Info("hosting session", "code", code, "peerID", id)

		return &Session{Code: code, SelfID: id, Role: RoleHost, transport: transport}, nil
	}

	return nil, fmt.Errorf("%w: no free code after %d attempts", apperror.ErrConnectionFailed, options.MaxAttempts)
}

// Join - connects to the host that shares the given code.
func Join(ctx context.Context, transport peer.Transport, options Options, code string) (*Session, peer.Channel, error) {
	options = options.withDefaults()
	log := options.Logger.With("method", "Join")

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, fmt.Errorf("%w: empty code", apperror.ErrConnectionFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, options.ConnectTimeout)
	defer cancel()

	id, err := transport.Open(ctx, "")
	if err != nil {
		return nil, nil, connectError(ctx, err)
	}

	ch, err := transport.ConnectTo(ctx, Namespace(options.Prefix, code))
	if err != nil {
		return nil, nil, connectError(ctx, err)
	}

	log.Info("joined session", "code", code, "peerID", id)

	return &Session{Code: code, SelfID: id, Role: RoleJoiner, transport: transport}, ch, nil
}

// Namespace - the transport identity for a human code.
func Namespace(prefix, code string) string {
	return prefix + code
}

// StripPrefix - the human code of a namespaced identity.
func StripPrefix(prefix, id string) string {
	return strings.TrimPrefix(id, prefix)
}

// OnIncomingConnection - hosts learn about joiners here.
func (that *Session) OnIncomingConnection(handler func(ch peer.Channel)) {
	that.transport.OnIncomingConnection(handler)
}

// OnClose - runs when the session is closed locally.
func (that *Session) OnClose(handler func()) {
	that.closes.Add(func(struct{}) { handler() })
}

// Close - releases the identity and every channel. Safe to call twice.
func (that *Session) Close() error {
	var err error

	that.closeOnce.Do(func() {
		err = that.transport.Close()
		that.closes.Notify(struct{}{})
	})

	return err
}

// connectError - a timeout stays a timeout, anything else is a failed connection.
func connectError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, apperror.ErrConnectTimeout), errors.Is(err, apperror.ErrConnectionFailed):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", apperror.ErrConnectTimeout, err)
	default:
		return fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
	}
}
