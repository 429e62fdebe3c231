package discordbot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/nantokaworks/counting-bot/internal/game"
	"github.com/nantokaworks/counting-bot/internal/jackpot"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"github.com/nantokaworks/counting-bot/internal/tournament"
	"go.uber.org/zap"
)

const (
	colorGold   = 0xF1C40F
	colorPurple = 0x9B59B6
)

// render turns one pipeline result into reactions/replies in the channel.
// 表示だけの層。ここでの失敗はゲーム状態に影響しない。
func (b *Bot) render(s *discordgo.Session, m *discordgo.MessageCreate, res *game.Result) {
	switch res.Outcome {
	case game.OutcomeLockedDiscard:
		// ベンチ中の投稿は痕跡ごと消す
		if err := s.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
			logger.Debug("Failed to delete benched message", zap.Error(err))
		}

	case game.OutcomeIgnoredNotAToken, game.OutcomeIgnoredPaused:
		// 雑談・一時停止中は無反応

	case game.OutcomeRejectedDoublePost:
		b.react(s, m, "⛔")
		line := b.banter.Pick("wrong", "Not two in a row.")
		b.say(s, m.ChannelID, fmt.Sprintf("%s <@%s> Count is back to **%s**. Next is for someone else.",
			line, m.Author.ID, res.Expected))
		b.renderPenalties(s, m, res)

	case game.OutcomeRejectedWrongValue:
		b.react(s, m, "❌")
		line := b.banter.Pick("wrong", "Wrong value.")
		b.say(s, m.ChannelID, fmt.Sprintf("%s <@%s> Expected **%s**. Count is back to the start.",
			line, m.Author.ID, res.Expected))
		b.renderPenalties(s, m, res)

	case game.OutcomeAccepted:
		b.react(s, m, "✅")
		if res.MilestoneHit {
			line := b.banter.Pick("milestone", fmt.Sprintf("Milestone %s smashed!", res.Posted))
			b.embed(s, m.ChannelID, &discordgo.MessageEmbed{
				Title:       "🎉 Milestone!",
				Description: fmt.Sprintf("%s\nCount reached **%s** by <@%s>", line, res.Posted, m.Author.ID),
				Color:       colorGold,
			})
		}
		b.renderJackpot(s, m, res)
	}
}

func (b *Bot) renderPenalties(s *discordgo.Session, m *discordgo.MessageCreate, res *game.Result) {
	if res.LockedUntil != nil {
		roast := b.banter.Pick("roast", "Have a sit-down and count sheep, not numbers.")
		b.say(s, m.ChannelID, fmt.Sprintf("🚫 <@%s> benched for **%d minutes**. %s",
			m.Author.ID, res.BenchMinutes, roast))
	}
	if res.TidyReset {
		b.say(s, m.ChannelID, "🧹 Too many wrong entries. The count has been tidied up. Fresh start!")
	}
}

func (b *Bot) renderJackpot(s *discordgo.Session, m *discordgo.MessageCreate, res *game.Result) {
	switch res.Jackpot {
	case jackpot.Awarded:
		if res.Tournament == tournament.Silent {
			// 上限到達後のサイレント当選。台帳には残るが告知しない。
			return
		}

		winnerLine := b.banter.Pick("winner", "We have a winner!")
		claimLine := b.banter.Pick("claim", "Open your ticket to claim.")
		desc := fmt.Sprintf("<@%s> hit the lucky number **%s**! %s\n**Prize:** %s",
			m.Author.ID, res.Posted, winnerLine, res.Prize)

		if res.Ticket != nil {
			desc += fmt.Sprintf("\n🎫 %s\n%s", claimLine, b.issuer.ClaimURL(res.Ticket.Handle))
		} else if res.TicketIssueErr != nil {
			// 当選は確定済み。チケット発行は後から運営が追える。
			desc += "\n🎟️ Ticket creation hit a snag — staff will sort your claim out."
		}

		if res.Tournament == tournament.Counted {
			desc += "\n🏆 Counted toward the tournament leaderboard!"
		} else if res.Tournament == tournament.Uncounted {
			desc += "\n🏁 Tournament cap reached — this one doesn't count toward the board."
		}

		b.embed(s, m.ChannelID, &discordgo.MessageEmbed{
			Title:       "💰 Jackpot!",
			Description: desc,
			Color:       colorPurple,
		})
		b.say(s, m.ChannelID, "📌 New lucky number armed. Keep counting.")

	case jackpot.AlreadyClaimed:
		// レースに負けた側。静かに流す。
		logger.Debug("Jackpot already claimed",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.Author.ID))
	}
}

func (b *Bot) react(s *discordgo.Session, m *discordgo.MessageCreate, emoji string) {
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, emoji); err != nil {
		logger.Debug("Failed to add reaction", zap.Error(err))
	}
}

func (b *Bot) say(s *discordgo.Session, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		logger.Warn("Failed to send message", zap.Error(err), zap.String("channel_id", channelID))
	}
}

func (b *Bot) embed(s *discordgo.Session, channelID string, e *discordgo.MessageEmbed) {
	if _, err := s.ChannelMessageSendEmbed(channelID, e); err != nil {
		logger.Warn("Failed to send embed", zap.Error(err), zap.String("channel_id", channelID))
	}
}
