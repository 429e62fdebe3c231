package discordbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

var (
	manageServerPerm = int64(discordgo.PermissionManageServer)
	dmDisabled       = false
	minOne           = float64(1)
)

// commands returns all slash commands. 管理系はManage Server権限で制限する。
func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "count-channel",
			Description:              "Set the counting channel and start value.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Counting channel", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "start", Description: "First expected number (default 1)", MinValue: &minOne},
			},
		},
		{
			Name:                     "count-mode",
			Description:              "Switch between number and letter counting.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "Counting mode", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "numbers (1, 2, 3...)", Value: localdb.ModeNumeric},
						{Name: "letters (A, B, C...)", Value: localdb.ModeAlphabetic},
					},
				},
			},
		},
		{
			Name:                     "count-strict",
			Description:              "Require the whole message to be the next value.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Strict parsing", Required: true},
			},
		},
		{
			Name:                     "count-words",
			Description:              "Accept word numbers (one, two, three...) in number mode.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Word numbers", Required: true},
			},
		},
		{
			Name:                     "count-reverse",
			Description:              "Count letters from Z down to A.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Reverse letter order", Required: true},
			},
		},
		{
			Name:                     "count-wrap",
			Description:              "Wrap letters past Z, or end each alphabet round there.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Wrap past the last letter", Required: true},
			},
		},
		{
			Name:                     "count-bench",
			Description:              "Set how long repeat offenders are benched.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "minutes", Description: "1-1440", Required: true, MinValue: &minOne, MaxValue: 1440},
			},
		},
		{
			Name:                     "count-pause",
			Description:              "Pause or resume the counting game.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "paused", Description: "Pause the game", Required: true},
			},
		},
		{
			Name:                     "count-reset",
			Description:              "Restart the count from the start value.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
		},
		{
			Name:                     "count-unbench",
			Description:              "Let a benched member count again.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Benched member", Required: true},
			},
		},
		{
			Name:                     "jackpot-range",
			Description:              "Set min/max steps for the hidden lucky number.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "min", Description: "Minimum steps ahead", Required: true, MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "max", Description: "Maximum steps ahead", Required: true, MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionString, Name: "prize", Description: "Prize text"},
			},
		},
		{
			Name:                     "jackpot-prize",
			Description:              "Set the prize text for jackpot winners.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "prize", Description: "Prize text", Required: true},
			},
		},
		{
			Name:                     "jackpot-window",
			Description:              "Arm one lucky number within the next N counts.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "window", Description: "Steps ahead at most", Required: true, MinValue: &minOne},
			},
		},
		{
			Name:                     "milestone-range",
			Description:              "Set min/max for random milestones.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "min", Description: "Minimum milestone", Required: true, MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "max", Description: "Maximum milestone", Required: true, MinValue: &minOne},
			},
		},
		{
			Name:                     "tournament-start",
			Description:              "Start a time-boxed jackpot tournament.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "minutes", Description: "Tournament length in minutes", Required: true, MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "awards", Description: "How many jackpot wins count", Required: true, MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reward", Description: "Tournament reward text"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "silent", Description: "Stay silent once the cap is reached"},
			},
		},
		{
			Name:                     "tournament-end",
			Description:              "End the current tournament.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
		},
		{
			Name:         "leaderboard",
			Description:  "Show the tournament leaderboard.",
			DMPermission: &dmDisabled,
		},
		{
			Name:         "winners",
			Description:  "Show recent jackpot winners.",
			DMPermission: &dmDisabled,
		},
		{
			Name:                     "ticket",
			Description:              "Look up the claim ticket for a winning value.",
			DefaultMemberPermissions: &manageServerPerm,
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "value", Description: "The value the jackpot was won at", Required: true},
			},
		},
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	handler, ok := b.commandHandlers()[data.Name]
	if !ok {
		return
	}

	if err := handler(s, i); err != nil {
		logger.Error("Slash command failed",
			zap.Error(err),
			zap.String("command", data.Name),
			zap.String("guild_id", i.GuildID))
		b.reply(s, i, fmt.Sprintf("⚠️ %s", err.Error()))
	}
}

type commandHandler func(s *discordgo.Session, i *discordgo.InteractionCreate) error

func (b *Bot) commandHandlers() map[string]commandHandler {
	return map[string]commandHandler{
		"count-channel":    b.cmdCountChannel,
		"count-mode":       b.cmdCountMode,
		"count-strict":     b.cmdCountStrict,
		"count-words":      b.cmdCountWords,
		"count-reverse":    b.cmdCountReverse,
		"count-wrap":       b.cmdCountWrap,
		"count-bench":      b.cmdCountBench,
		"count-pause":      b.cmdCountPause,
		"count-reset":      b.cmdCountReset,
		"count-unbench":    b.cmdCountUnbench,
		"jackpot-range":    b.cmdJackpotRange,
		"jackpot-prize":    b.cmdJackpotPrize,
		"jackpot-window":   b.cmdJackpotWindow,
		"milestone-range":  b.cmdMilestoneRange,
		"tournament-start": b.cmdTournamentStart,
		"tournament-end":   b.cmdTournamentEnd,
		"leaderboard":      b.cmdLeaderboard,
		"winners":          b.cmdWinners,
		"ticket":           b.cmdTicket,
	}
}

// reply sends an ephemeral response to the invoking user.
func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Warn("Failed to respond to interaction", zap.Error(err))
	}
}

func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := map[string]*discordgo.ApplicationCommandInteractionDataOption{}
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

func (b *Bot) cmdCountChannel(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	opts := options(i)
	channel := opts["channel"].ChannelValue(s)
	start := int64(1)
	if opt, ok := opts["start"]; ok {
		start = opt.IntValue()
	}

	st, err := b.svc.SetChannel(i.GuildID, channel.ID, start)
	if err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("🔢 Counting channel set to <#%s>. Next expected: **%s**.",
		channel.ID, b.svc.ExpectedNext(st)))
	return nil
}

func (b *Bot) cmdCountMode(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	mode := options(i)["mode"].StringValue()
	st, err := b.svc.SetMode(i.GuildID, mode)
	if err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("✅ Mode set to **%s**. Count restarts at **%s**.",
		mode, b.svc.ExpectedNext(st)))
	return nil
}

func (b *Bot) cmdCountStrict(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	enabled := options(i)["enabled"].BoolValue()
	if _, err := b.svc.SetStrict(i.GuildID, enabled); err != nil {
		return err
	}
	if enabled {
		b.reply(s, i, "🔒 Strict parsing on: the whole message must be the next value.")
	} else {
		b.reply(s, i, "🔓 Strict parsing off: a leading value is enough.")
	}
	return nil
}

func (b *Bot) cmdCountWords(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	enabled := options(i)["enabled"].BoolValue()
	if _, err := b.svc.SetWordNumbers(i.GuildID, enabled); err != nil {
		return err
	}
	if enabled {
		b.reply(s, i, "🗣️ Word numbers enabled. Use `one, two, three...`")
	} else {
		b.reply(s, i, "🔢 Word numbers disabled. Plain numbers only.")
	}
	return nil
}

func (b *Bot) cmdCountReverse(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	enabled := options(i)["enabled"].BoolValue()
	st, err := b.svc.SetReverseLetters(i.GuildID, enabled)
	if err != nil {
		return err
	}
	if st.Mode == localdb.ModeAlphabetic {
		b.reply(s, i, fmt.Sprintf("🔃 Letter order updated. Count restarts at **%s**.", b.svc.ExpectedNext(st)))
	} else {
		b.reply(s, i, "🔃 Letter order saved. It applies when letter mode is on.")
	}
	return nil
}

func (b *Bot) cmdCountWrap(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	enabled := options(i)["enabled"].BoolValue()
	if _, err := b.svc.SetWrapLetters(i.GuildID, enabled); err != nil {
		return err
	}
	if enabled {
		b.reply(s, i, "🔁 Letters wrap around after the last one.")
	} else {
		b.reply(s, i, "🛑 Each alphabet round ends at the last letter. Anyone may start the next one.")
	}
	return nil
}

func (b *Bot) cmdCountBench(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	minutes := options(i)["minutes"].IntValue()
	if _, err := b.svc.SetBench(i.GuildID, minutes); err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("⏱️ Bench duration set to **%d minutes**.", minutes))
	return nil
}

func (b *Bot) cmdCountPause(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	paused := options(i)["paused"].BoolValue()
	if _, err := b.svc.SetPaused(i.GuildID, paused); err != nil {
		return err
	}
	if paused {
		b.reply(s, i, "⏸️ Counting paused.")
	} else {
		b.reply(s, i, "▶️ Counting resumed.")
	}
	return nil
}

func (b *Bot) cmdCountReset(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	st, err := b.svc.ResetCount(i.GuildID)
	if err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("🔄 Count reset. Next expected: **%s**.", b.svc.ExpectedNext(st)))
	return nil
}

func (b *Bot) cmdCountUnbench(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	member := options(i)["member"].UserValue(s)
	b.svc.Unbench(i.GuildID, member.ID)
	b.reply(s, i, fmt.Sprintf("🔓 <@%s> is off the bench.", member.ID))
	return nil
}

func (b *Bot) cmdJackpotRange(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	opts := options(i)
	min := opts["min"].IntValue()
	max := opts["max"].IntValue()
	prize := ""
	if opt, ok := opts["prize"]; ok {
		prize = opt.StringValue()
	}

	st, err := b.svc.SetJackpotRange(i.GuildID, min, max, prize)
	if err != nil {
		return err
	}
	// ターゲット自体は秘密。範囲と賞品だけ知らせる。
	b.reply(s, i, fmt.Sprintf("🎯 Lucky range set to **%d–%d** steps ahead. Prize: **%s**. A new number is armed.",
		min, max, st.JackpotPrize))
	return nil
}

func (b *Bot) cmdJackpotPrize(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	prize := options(i)["prize"].StringValue()
	if _, err := b.svc.SetJackpotPrize(i.GuildID, prize); err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("🏅 Jackpot prize set to: **%s**", prize))
	return nil
}

func (b *Bot) cmdJackpotWindow(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	window := options(i)["window"].IntValue()
	if _, err := b.svc.SetJackpotWindow(i.GuildID, window); err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("🎯 One lucky number armed within the next **%d** counts. Back to normal after it hits.", window))
	return nil
}

func (b *Bot) cmdMilestoneRange(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	opts := options(i)
	min := opts["min"].IntValue()
	max := opts["max"].IntValue()
	st, err := b.svc.SetMilestoneRange(i.GuildID, min, max)
	if err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("📢 Milestone range set to **%d–%d**. Next milestone: **%d**.",
		min, max, st.NextMilestone))
	return nil
}

func (b *Bot) cmdTournamentStart(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	opts := options(i)
	minutes := opts["minutes"].IntValue()
	awards := opts["awards"].IntValue()
	reward := ""
	if opt, ok := opts["reward"]; ok {
		reward = opt.StringValue()
	}
	silent := false
	if opt, ok := opts["silent"]; ok {
		silent = opt.BoolValue()
	}

	t, err := b.svc.StartTournament(i.GuildID, time.Duration(minutes)*time.Minute, reward, awards, silent)
	if err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("🏆 Tournament started! First **%d** jackpot wins count. Ends <t:%d:R>.",
		t.MaxAwards, t.EndsAt.Unix()))
	return nil
}

func (b *Bot) cmdTournamentEnd(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if err := b.svc.EndTournament(i.GuildID); err != nil {
		return err
	}
	b.reply(s, i, "🏁 Tournament ended. The leaderboard stays up until the next one.")
	return nil
}

func (b *Bot) cmdLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	wins, err := b.svc.Leaderboard(i.GuildID, 10)
	if err != nil {
		return err
	}
	if len(wins) == 0 {
		b.reply(s, i, "🏆 No tournament wins yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("🏆 Tournament leaderboard:\n")
	for idx, w := range wins {
		fmt.Fprintf(&sb, "%d. <@%s> — **%d** win(s)\n", idx+1, w.UserID, w.Wins)
	}
	b.reply(s, i, sb.String())
	return nil
}

func (b *Bot) cmdTicket(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	value := options(i)["value"].IntValue()
	ticket, err := b.svc.TicketFor(i.GuildID, value)
	if err != nil {
		return err
	}
	b.reply(s, i, fmt.Sprintf("🎫 Ticket for <@%s> (won at **%d**):\n%s",
		ticket.UserID, ticket.ValueWonAt, b.issuer.ClaimURL(ticket.Handle)))
	return nil
}

func (b *Bot) cmdWinners(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	winners, err := b.svc.Winners(i.GuildID, 10)
	if err != nil {
		return err
	}
	if len(winners) == 0 {
		b.reply(s, i, "🎟️ No jackpot winners yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("🎟️ Recent jackpot winners:\n")
	for _, w := range winners {
		fmt.Fprintf(&sb, "• <@%s> at **%d** — %s\n", w.UserID, w.ValueWonAt, w.Prize)
	}
	b.reply(s, i, sb.String())
	return nil
}
