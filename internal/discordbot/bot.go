package discordbot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/nantokaworks/counting-bot/internal/banter"
	"github.com/nantokaworks/counting-bot/internal/game"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"github.com/nantokaworks/counting-bot/internal/ticketissuer"
	"go.uber.org/zap"
)

// Bot はDiscordとの接続とイベント配線を持つ。
type Bot struct {
	session *discordgo.Session
	svc     *game.Service
	banter  *banter.Catalog
	issuer  *ticketissuer.Issuer
}

// New creates the Discord session and wires handlers.
func New(token string, svc *game.Service, catalog *banter.Catalog, issuer *ticketissuer.Issuer) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	b := &Bot{session: session, svc: svc, banter: catalog, issuer: issuer}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Start opens the gateway connection and registers slash commands.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	if _, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commands()); err != nil {
		// コマンド登録失敗は致命ではない。カウント処理自体は動く。
		logger.Error("Failed to register slash commands", zap.Error(err))
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Info("Discord session ready",
		zap.String("username", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Bot自身や他Botの投稿はコアに入る前に落とす
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ev := game.Event{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	res, err := b.svc.HandleMessage(context.Background(), ev)
	if err != nil {
		logger.Error("Failed to handle message",
			zap.Error(err),
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.Author.ID))
		return
	}
	if res == nil {
		return
	}

	b.render(s, m, res)
}
