package handlers

import (
	"github.com/google/wire"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Auth   *AuthHandler
	User   *UserHandler
	Chat   *ChatHandler
	Device *DeviceHandler
	Stream *Streamer
}

// NewProvider creates a new handler provider.
func NewProvider(auth *AuthHandler, users *UserHandler, chat *ChatHandler, device *DeviceHandler, stream *Streamer) *Provider {
	return &Provider{
		Auth:   auth,
		User:   users,
		Chat:   chat,
		Device: device,
		Stream: stream,
	}
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	NewAuthHandler,
	NewUserHandler,
	NewChatHandler,
	NewDeviceHandler,
	NewStreamer,
	NewProvider,
)
