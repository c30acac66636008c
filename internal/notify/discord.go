package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord sends notifications through a Discord bot. Recipients are user
// ids; a DM channel is opened on demand.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord creates a Discord sender from a bot token.
func NewDiscord(token string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Discord{session: session}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, recipient, text string) error {
	ch, err := d.session.UserChannelCreate(recipient, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord dm channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
