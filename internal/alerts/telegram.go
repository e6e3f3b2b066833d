package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// Min interval between two Telegram messages to the same chat (~30/min limit).
const telegramSendInterval = 2 * time.Second

const telegramQueueSize = 100

var (
	ErrNotifierStopped = errors.New("notifier stopped")
	ErrQueueFull       = errors.New("message queue is full")
)

// telegramSender is the part of the bot API the notifier uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier queues alerts and sends them from a background goroutine,
// paced by a rate limiter.
type TelegramNotifier struct {
	bot     telegramSender
	chatID  int64
	limiter *rate.Limiter

	// mu guards stopped; Deliver enqueues under the read lock so nothing is
	// queued after Stop has begun draining.
	mu        sync.RWMutex
	stopped   bool
	queue     chan Notification
	queueDone chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTelegramNotifier connects to the bot API and starts the sender.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false
	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("get bot info: %w", err)
	}
	n := newTelegramNotifier(bot, chatID, rate.NewLimiter(rate.Every(telegramSendInterval), 1))
	slog.Info("Telegram notifier initialized", "chat_id", chatID)
	return n, nil
}

func newTelegramNotifier(bot telegramSender, chatID int64, limiter *rate.Limiter) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		limiter:   limiter,
		queue:     make(chan Notification, telegramQueueSize),
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	n.wg.Add(1)
	go n.messageSender()
	return n
}

func (n *TelegramNotifier) Name() string { return "telegram" }

// Deliver queues the notification without blocking.
func (n *TelegramNotifier) Deliver(ctx context.Context, note Notification) error {
	if n == nil || n.bot == nil {
		return errors.New("telegram notifier not initialized")
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		return ErrNotifierStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- note:
		return nil
	default:
		slog.Warn("Telegram message queue is full, dropping message", "game_id", note.GameID, "type", note.Kind)
		return ErrQueueFull
	}
}

// QueueLen returns the number of messages waiting to be sent.
func (n *TelegramNotifier) QueueLen() int {
	if n == nil {
		return 0
	}
	return len(n.queue)
}

func (n *TelegramNotifier) messageSender() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			// Drain what is left without pacing; shutdown should not hang on the limiter.
			for {
				select {
				case note := <-n.queue:
					n.send(note)
				default:
					close(n.queueDone)
					return
				}
			}
		case note := <-n.queue:
			if err := n.limiter.Wait(n.ctx); err != nil {
				slog.Debug("Telegram send: pacing interrupted", "error", err)
			}
			n.send(note)
		}
	}
}

func (n *TelegramNotifier) send(note Notification) {
	msg := tgbotapi.NewMessage(n.chatID, formatAlert(note))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	start := time.Now()
	_, err := n.bot.Send(msg)
	if err != nil {
		slog.Error("Telegram send: failed", "game_id", note.GameID, "type", note.Kind, "error", err)
		return
	}
	slog.Info("Telegram send: success",
		"game_id", note.GameID,
		"type", note.Kind,
		"send_duration", time.Since(start),
		"delay_since_event_sec", time.Since(note.EventTime).Seconds(),
		"queue_length", len(n.queue))
}

// Stop stops accepting messages, sends whatever is queued and waits for the sender.
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.mu.Lock()
	n.stopped = true
	n.mu.Unlock()

	n.cancel()
	<-n.queueDone
	n.wg.Wait()
}

func formatAlert(note Notification) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏀 *%s*\n\n", escapeMarkdown(kindTitle(note.Kind))))
	b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(note.GameName)))
	b.WriteString(escapeMarkdown(note.Detail))
	b.WriteString("\n")
	if !note.EventTime.IsZero() {
		b.WriteString(fmt.Sprintf("_%s_\n", escapeMarkdown(note.EventTime.UTC().Format("2006-01-02 15:04:05 UTC"))))
	}
	return b.String()
}

func kindTitle(kind models.EventKind) string {
	parts := strings.Split(string(kind), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
		}
	}
	return strings.Join(parts, " ")
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)
	return replacer.Replace(text)
}
