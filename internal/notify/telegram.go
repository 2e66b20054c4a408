// Package notify delivers timer-completion alerts. The Telegram
// implementation arms one delayed message per running timer and cancels
// it by opaque handle.
package notify

import (
	"fmt"
	"html"
	"log"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// ErrNoChat is returned by Schedule before any chat has granted the bot
// a delivery target. Timers keep running without an alert.
var ErrNoChat = fmt.Errorf("no chat bound for notifications")

// Sender is the slice of the Telegram API the notifier needs.
// *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier schedules completion messages with time.AfterFunc and
// tracks the armed alerts by handle so they can be cancelled.
type TelegramNotifier struct {
	api    Sender
	chatID atomic.Int64

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewTelegramNotifier(api Sender) *TelegramNotifier {
	return &TelegramNotifier{
		api:     api,
		pending: make(map[string]*time.Timer),
	}
}

// BindChat sets the chat completion alerts are delivered to. Until a
// chat is bound, Schedule fails with ErrNoChat.
func (n *TelegramNotifier) BindChat(chatID int64) {
	n.chatID.Store(chatID)
}

// Bound reports whether a delivery chat has been set.
func (n *TelegramNotifier) Bound() bool {
	return n.chatID.Load() != 0
}

// Schedule arms a completion alert for the timer, firing after delay.
// Returns the opaque handle used to cancel it.
func (n *TelegramNotifier) Schedule(timerID, label string, delay time.Duration) (string, error) {
	chatID := n.chatID.Load()
	if chatID == 0 {
		return "", ErrNoChat
	}

	handle := uuid.NewString()
	timer := time.AfterFunc(delay, func() {
		n.mu.Lock()
		delete(n.pending, handle)
		n.mu.Unlock()
		n.deliver(chatID, timerID, label)
	})

	n.mu.Lock()
	n.pending[handle] = timer
	n.mu.Unlock()
	return handle, nil
}

// Cancel disarms the alert behind the handle. Cancelling an unknown,
// already-fired, or already-cancelled handle is not an error.
func (n *TelegramNotifier) Cancel(handle string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if timer, ok := n.pending[handle]; ok {
		timer.Stop()
		delete(n.pending, handle)
	}
}

// CancelAll disarms every pending alert. Used on shutdown.
func (n *TelegramNotifier) CancelAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for handle, timer := range n.pending {
		timer.Stop()
		delete(n.pending, handle)
	}
}

func (n *TelegramNotifier) deliver(chatID int64, timerID, label string) {
	text := fmt.Sprintf("⏰ <b>\"%s\" completed!</b>\nThat's done! Ready for your next task?", html.EscapeString(label))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	// The timer id rides along on the restart button so the completion
	// message can be correlated back to its timer.
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Restart", "start:"+timerID),
		),
	)
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("deliver notification for timer %s: %v", timerID, err)
	}
}
