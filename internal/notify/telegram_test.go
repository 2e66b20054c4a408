package notify

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestScheduleRequiresBoundChat(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{})
	if _, err := n.Schedule("t-1", "Tea", time.Minute); !errors.Is(err, ErrNoChat) {
		t.Errorf("err = %v, want ErrNoChat", err)
	}
}

func TestScheduleDeliversAfterDelay(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender)
	n.BindChat(42)

	handle, err := n.Schedule("t-1", "Tea", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if handle == "" {
		t.Fatal("handle must be non-empty")
	}

	deadline := time.Now().Add(2 * time.Second)
	for sender.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != 42 {
		t.Errorf("chat id = %d, want 42", msg.ChatID)
	}
	if !strings.Contains(msg.Text, `"Tea" completed!`) {
		t.Errorf("message text = %q, want the completion title", msg.Text)
	}
}

func TestCancelPreventsDelivery(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender)
	n.BindChat(42)

	handle, err := n.Schedule("t-1", "Tea", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	n.Cancel(handle)

	time.Sleep(150 * time.Millisecond)
	if sender.sentCount() != 0 {
		t.Error("cancelled alert was still delivered")
	}

	// Cancelling again, or cancelling garbage, is not an error.
	n.Cancel(handle)
	n.Cancel("no-such-handle")
}

func TestCancelAll(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender)
	n.BindChat(42)

	for i := 0; i < 3; i++ {
		if _, err := n.Schedule("t", "x", 50*time.Millisecond); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	n.CancelAll()

	time.Sleep(150 * time.Millisecond)
	if sender.sentCount() != 0 {
		t.Error("CancelAll left alerts armed")
	}
}
