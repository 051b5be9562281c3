package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

const telegramTextLimit = 4000

// telegramTransport sends through the Bot API. The bot is built lazily and
// offline (no getMe round trip) and rebuilt when token or API URL change.
type telegramTransport struct {
	dispatcher *Dispatcher

	mu     sync.Mutex
	bot    *tele.Bot
	token  string
	apiURL string
}

func (t *telegramTransport) Deliver(ctx context.Context, target reminder.Target, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(target.Address), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", target.Address, err)
	}
	bot, err := t.botFor()
	if err != nil {
		return err
	}

	// Once the first chunk is out the message counts as delivered: a retry
	// would repeat what the chat already shows.
	chat := &tele.Chat{ID: chatID}
	chunks := splitText(text, telegramTextLimit)
	for i, chunk := range chunks {
		err := ctx.Err()
		if err == nil {
			_, err = bot.Send(chat, chunk, &tele.SendOptions{DisableWebPagePreview: true})
		}
		if err == nil {
			continue
		}
		if i == 0 {
			return fmt.Errorf("telegram send: %w", err)
		}
		t.dispatcher.log.Warn("telegram message truncated",
			logx.Int64("target", target.ID),
			logx.Int("sent_chunks", i),
			logx.Int("chunks", len(chunks)),
			logx.Err(err),
		)
		return nil
	}
	return nil
}

func (t *telegramTransport) botFor() (*tele.Bot, error) {
	cfg, _ := t.dispatcher.config()
	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" {
		return nil, errors.New("telegram token is not configured")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil && t.token == token && t.apiURL == cfg.Telegram.APIURL {
		return t.bot, nil
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.Telegram.APIURL,
		Token:   token,
		Client:  t.dispatcher.client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bot, t.token, t.apiURL = b, token, cfg.Telegram.APIURL
	return b, nil
}

// splitText cuts long messages into chunks of at most limit runes, preferring
// newline boundaries.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	var out []string
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
