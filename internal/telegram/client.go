// Package telegram sends watcher notifications through the Telegram Bot API.
// Messages use MarkdownV2; every piece of dynamic text goes through
// escapeMarkdownV2 before it is embedded.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hetansh2220/Pulse/internal/format"
	"github.com/hetansh2220/Pulse/internal/models"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendChanges sends the ranked price moves. Nothing is sent for an empty list.
func (c *Client) SendChanges(changes []models.Change) error {
	if len(changes) == 0 {
		return nil
	}
	return c.send(formatChanges(changes))
}

// SendTransitions sends lifecycle status changes. Nothing is sent for an
// empty list.
func (c *Client) SendTransitions(transitions []models.Transition) error {
	if len(transitions) == 0 {
		return nil
	}
	return c.send(formatTransitions(transitions))
}

// SendError notifies that a monitoring cycle failed.
func (c *Client) SendError(cycleErr error) error {
	msg := "⚠️ *Monitoring cycle failed*\n\n" + escapeMarkdownV2(cycleErr.Error())
	return c.send(msg)
}

// SendRecovery notifies that cycles succeed again after failures.
func (c *Client) SendRecovery(failures int) error {
	msg := fmt.Sprintf("✅ *Monitoring recovered* after %d failed %s",
		failures, pluralize(failures, "cycle", "cycles"))
	return c.send(msg)
}

// send delivers a MarkdownV2 message with retry
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			time.Sleep(c.retryDelayBase * time.Duration(i))
		}
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatChanges formats price moves into a Telegram message
func formatChanges(changes []models.Change) string {
	var b strings.Builder
	b.WriteString("🚨 *Top Price Moves Detected*\n\n")
	fmt.Fprintf(&b, "📅 Detected: %s\n\n", escapeMarkdownV2(format.DateTime(changes[0].DetectedAt)))

	for i, change := range changes {
		directionEmoji := "📈"
		if change.Direction == "decrease" {
			directionEmoji = "📉"
		}

		fmt.Fprintf(&b, "%d\\. %s\n", i+1, escapeMarkdownV2(format.Truncate(change.Question, 120)))
		fmt.Fprintf(&b, "   %s YES: *%s* \\(%s → %s\\)\n",
			directionEmoji,
			escapeMarkdownV2(format.Percent(signedMagnitude(change)*100, 1, true)),
			escapeMarkdownV2(format.Probability(change.OldPrice, 1)),
			escapeMarkdownV2(format.Probability(change.NewPrice, 1)))
		fmt.Fprintf(&b, "   ⏱ Window: %s", escapeMarkdownV2(formatDuration(change.TimeWindow)))
		if change.ProbeImpact > 0 {
			fmt.Fprintf(&b, " · Impact: %s", escapeMarkdownV2(format.Percent(change.ProbeImpact, 2, false)))
		}
		b.WriteString("\n\n")
	}

	return b.String()
}

// formatTransitions formats lifecycle status changes into a Telegram message
func formatTransitions(transitions []models.Transition) string {
	var b strings.Builder
	b.WriteString("🔔 *Market Status Changes*\n\n")

	for i, tr := range transitions {
		fmt.Fprintf(&b, "%d\\. %s\n", i+1, escapeMarkdownV2(format.Truncate(tr.Question, 120)))
		fmt.Fprintf(&b, "   %s %s → *%s* · YES %s\n\n",
			statusEmoji(tr.To),
			escapeMarkdownV2(tr.From.Label()),
			escapeMarkdownV2(tr.To.Label()),
			escapeMarkdownV2(format.Price(tr.YesPrice)))
	}

	return b.String()
}

func signedMagnitude(c models.Change) float64 {
	if c.Direction == "decrease" {
		return -c.Magnitude
	}
	return c.Magnitude
}

func statusEmoji(s models.Status) string {
	switch s {
	case models.StatusUpcoming:
		return "⏳"
	case models.StatusActive:
		return "🟢"
	case models.StatusEnded:
		return "🏁"
	case models.StatusResolved:
		return "⚖️"
	}
	return "•"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration as hours and minutes, e.g. "1h30m".
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	switch {
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%dh%dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
