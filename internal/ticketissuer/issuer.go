package ticketissuer

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nantokaworks/counting-bot/internal/localdb"
	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Issuer produces prize claim tickets for jackpot winners.
// (guild, value) ごとに冪等：同じ当選に対して2度呼ばれても同じチケットを返す。
// 発行失敗は当選記録を巻き戻さない（呼び出し側はエラーをログして続行する）。
type Issuer struct {
	// BaseURL is the public claim URL prefix, e.g. "http://localhost:8080/claim".
	BaseURL string
}

func NewIssuer(baseURL string) *Issuer {
	return &Issuer{BaseURL: baseURL}
}

// Issue creates (or returns the existing) ticket for one jackpot award.
func (i *Issuer) Issue(guildID, winnerID, prize string, valueWonAt int64) (*localdb.Ticket, error) {
	existing, err := localdb.GetTicket(guildID, valueWonAt)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	handle, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket handle: %w", err)
	}

	t := &localdb.Ticket{
		GuildID:    guildID,
		ValueWonAt: valueWonAt,
		Handle:     handle,
		UserID:     winnerID,
		Prize:      prize,
	}
	if err := localdb.SaveTicket(t); err != nil {
		return nil, err
	}

	// SaveTicketはDO NOTHINGなので、競合したら先勝ちの行を読み直す。
	saved, err := localdb.GetTicket(guildID, valueWonAt)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("failed to issue ticket: record not found after insert")
	}

	logger.Info("Ticket issued",
		zap.String("guild_id", guildID),
		zap.String("user_id", winnerID),
		zap.Int64("value", valueWonAt),
		zap.String("handle", saved.Handle))
	return saved, nil
}

// ClaimURL returns the public URL for a ticket handle.
func (i *Issuer) ClaimURL(handle string) string {
	return fmt.Sprintf("%s/%s", i.BaseURL, handle)
}

// ClaimQR renders the claim URL as a PNG QR code.
func (i *Issuer) ClaimQR(handle string) ([]byte, error) {
	png, err := qrcode.Encode(i.ClaimURL(handle), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim QR: %w", err)
	}
	return png, nil
}
