package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly restricts the command to any registered administrator.
	AdminOnly bool
	// PrimaryOnly further restricts the command to the primary administrator.
	PrimaryOnly bool
	Hidden      bool
	Aliases     []string
}
