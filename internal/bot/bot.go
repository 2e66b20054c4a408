package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tickdown/internal/config"
	"tickdown/internal/model"
	"tickdown/internal/notify"
	"tickdown/internal/repository"
	"tickdown/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageLabel
	stageDuration
	stageRecurring
	stageInterval
)

const (
	cbStartPrefix   = "start:"
	cbPausePrefix   = "pause:"
	cbResetPrefix   = "reset:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
	cbThemePrefix   = "theme:"
)

const (
	btnSkip   = "⏭️ Skip"
	btnYes    = "Yes"
	btnNo     = "No"
	btnCancel = "⏪ Cancel"
)

type conversationState struct {
	stage conversationStage
	input service.TimerInput
}

// Bot is the presentation layer: it renders the timer collection and
// forwards user intents into the store.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	store         *service.TimerStore
	notifier      *notify.TelegramNotifier
	config        *config.Config
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(api *tgbotapi.BotAPI, userRepo *repository.UserRepository, store *service.TimerStore, notifier *notify.TelegramNotifier, cfg *config.Config) *Bot {
	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		store:         store,
		notifier:      notifier,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == btnCancel {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't catch that. Use /add to create a timer or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "add", "new":
		return b.startAddConversation(ctx, msg)
	case "list", "timers":
		return b.handleList(ctx, msg)
	case "reorder":
		return b.handleReorder(ctx, msg)
	case "theme":
		return b.handleTheme(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}

	// First contact binds the delivery chat; armed timers get their
	// alerts re-scheduled against the now-working channel.
	if !b.notifier.Bound() {
		b.notifier.BindChat(msg.Chat.ID)
		b.store.RearmNotifications()
	}

	name := strings.TrimSpace(user.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi %s!\n<b>I keep your countdown timers and ping you when they finish.</b>\n\nCommands:\n"+
			"• /add — create a new timer\n"+
			"• /list — show timers with start/pause/reset buttons\n"+
			"• /reorder 3 1 2 — rearrange the list\n"+
			"• /theme — display preference\n"+
			"• /cancel — abort the current input",
		html.EscapeString(name),
	)
	if b.config != nil && b.config.SummaryTime != "" {
		text += fmt.Sprintf("\n\nI'll also send a daily summary at %s.", b.config.SummaryTime)
	}

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>How it works</b>\n" +
		"• /add — create a timer step by step (label, duration, repeat)\n" +
		"• /list — current timers; tap a button to start, pause, reset or delete\n" +
		"• /reorder 3 1 2 — new order by current list numbers\n" +
		"• /theme — light / dark / system\n" +
		"• Durations up to 24 hours: <code>25</code> (minutes), <code>1:30:00</code>, <code>90s</code>\n" +
		"• Recurring timers restart themselves when they finish"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startAddConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageLabel})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New timer.\n<b>Step 1:</b> what should it be called?", skipKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageLabel:
		if !isSkipInput(text) {
			label, err := service.ValidateLabel(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Give the timer a name, or press Skip to call it "+service.DefaultLabel+".", skipKeyboard())
			}
			state.input.Label = label
		}
		state.stage = stageDuration
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏱ <b>Step 2:</b> how long? Pick a preset or type <code>25</code>, <code>1:30:00</code>, <code>90s</code>…", presetKeyboard())
	case stageDuration:
		hours, minutes, seconds, err := ParseDurationInput(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Can't read that duration. Try <code>25</code> (minutes), <code>05:00</code> or <code>1h30m</code>.", presetKeyboard())
		}
		state.input.Hours, state.input.Minutes, state.input.Seconds = hours, minutes, seconds
		if total := state.input.TotalSeconds(); total <= 0 || total > model.MaxDuration {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Duration must be above zero and at most 24 hours.", presetKeyboard())
		}
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Restart automatically every time it finishes?", yesNoKeyboard())
	case stageRecurring:
		switch strings.ToLower(text) {
		case "yes", "y":
			state.input.Recurring = true
			state.stage = stageInterval
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 How often does it repeat?", intervalKeyboard())
		case "no", "n", "-":
			state.input.Recurring = false
			err := b.finishTimerCreation(ctx, msg.From, state.input, msg.Chat.ID)
			b.clearConversation(msg.From.ID)
			return err
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Press Yes or No.", yesNoKeyboard())
		}
	case stageInterval:
		switch model.RecurInterval(strings.ToLower(text)) {
		case model.RecurDaily, model.RecurWeekly, model.RecurMonthly:
			state.input.RecurringInterval = model.RecurInterval(strings.ToLower(text))
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick daily, weekly or monthly.", intervalKeyboard())
		}
		err := b.finishTimerCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try again with /add.")
	}
}

func (b *Bot) finishTimerCreation(ctx context.Context, from *tgbotapi.User, input service.TimerInput, chatID int64) error {
	timer, err := b.store.AddTimer(input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDuration) {
			return b.sendText(chatID, "⚠️ Duration must be above zero and at most 24 hours.")
		}
		return b.sendText(chatID, fmt.Sprintf("Could not create the timer: %s", html.EscapeString(err.Error())))
	}

	log.Printf("[info] timer created id=%s duration=%ds recurring=%t", timer.ID, timer.Duration, timer.IsRecurring())

	var summary strings.Builder
	summary.WriteString("✅ <b>Timer created</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Label:</b> %s\n", html.EscapeString(timer.Label)))
	summary.WriteString(fmt.Sprintf("• <b>Duration:</b> %s\n", FormatClock(timer.Duration)))
	if timer.IsRecurring() {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", timer.Recurring.Interval))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendTimerList(ctx, chatID)
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	// Make sure stale countdowns are corrected before rendering.
	b.store.ReconcileAll()
	return b.sendTimerList(ctx, msg.Chat.ID)
}

func (b *Bot) sendTimerList(_ context.Context, chatID int64) error {
	timers := b.store.Timers()
	if len(timers) == 0 {
		return b.sendText(chatID, "No timers yet. Create one with /add.")
	}

	var builder strings.Builder
	builder.WriteString("⏳ <b>Your timers</b>\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, t := range timers {
		builder.WriteString(formatTimerLine(i, t))
		buttons = append(buttons, timerActionRow(t))
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	out.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(out)
	return err
}

// timerActionRow builds the inline actions matching the timer's state:
// idle/paused/completed can start, running can pause, and everything can
// reset or be deleted.
func timerActionRow(t model.Timer) []tgbotapi.InlineKeyboardButton {
	label := shortLabel(t.Label, 16)
	var row []tgbotapi.InlineKeyboardButton
	if t.Status == model.StatusRunning {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⏸ "+label, cbPausePrefix+t.ID))
	} else {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("▶️ "+label, cbStartPrefix+t.ID))
	}
	row = append(row,
		tgbotapi.NewInlineKeyboardButtonData("🔄", cbResetPrefix+t.ID),
		tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+t.ID),
	)
	return row
}

func (b *Bot) handleReorder(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}

	args := strings.Fields(msg.CommandArguments())
	timers := b.store.Timers()
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Send the new order by current list numbers, e.g. /reorder 3 1 2 (you have %d timers).", len(timers)))
	}
	if len(args) != len(timers) {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Expected %d numbers, got %d.", len(timers), len(args)))
	}

	ids := make([]string, 0, len(args))
	seen := make(map[int]bool, len(args))
	for _, arg := range args {
		pos, err := strconv.Atoi(arg)
		if err != nil || pos < 1 || pos > len(timers) || seen[pos] {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Positions must be the numbers 1–%d, each exactly once.", len(timers)))
		}
		seen[pos] = true
		ids = append(ids, timers[pos-1].ID)
	}

	if err := b.store.Reorder(ids); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Reorder failed: %s", html.EscapeString(err.Error())))
	}
	return b.sendTimerList(ctx, msg.Chat.ID)
}

func (b *Bot) handleTheme(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("🎨 Current theme: <b>%s</b>. Pick a new one:", user.Theme))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("☀️ Light", cbThemePrefix+string(model.ThemeLight)),
			tgbotapi.NewInlineKeyboardButtonData("🌙 Dark", cbThemePrefix+string(model.ThemeDark)),
			tgbotapi.NewInlineKeyboardButtonData("📱 System", cbThemePrefix+string(model.ThemeSystem)),
		),
	)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbStartPrefix):
		return b.startTimerAndRefresh(ctx, cb.From, chatID, strings.TrimPrefix(data, cbStartPrefix))
	case strings.HasPrefix(data, cbPausePrefix):
		if err := b.store.PauseTimer(strings.TrimPrefix(data, cbPausePrefix)); err != nil {
			return b.reportStoreError(chatID, err)
		}
		return b.sendTimerList(ctx, chatID)
	case strings.HasPrefix(data, cbResetPrefix):
		if err := b.store.ResetTimer(strings.TrimPrefix(data, cbResetPrefix)); err != nil {
			return b.reportStoreError(chatID, err)
		}
		return b.sendTimerList(ctx, chatID)
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askDeleteConfirmation(chatID, strings.TrimPrefix(data, cbDeletePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		if err := b.store.DeleteTimer(strings.TrimPrefix(data, cbConfirmPrefix)); err != nil {
			return b.reportStoreError(chatID, err)
		}
		if err := b.sendText(chatID, "🗑 Timer deleted."); err != nil {
			return err
		}
		return b.sendTimerList(ctx, chatID)
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendTimerList(ctx, chatID)
	case strings.HasPrefix(data, cbThemePrefix):
		return b.applyTheme(ctx, cb.From, chatID, strings.TrimPrefix(data, cbThemePrefix))
	default:
		return nil
	}
}

func (b *Bot) startTimerAndRefresh(ctx context.Context, from *tgbotapi.User, chatID int64, timerID string) error {
	if err := b.store.StartTimer(timerID); err != nil {
		return b.reportStoreError(chatID, err)
	}

	// Degraded start: the timer runs but no alert could be armed. Tell
	// the user once.
	if t, ok := b.store.Get(timerID); ok && t.NotificationID == "" {
		b.maybeSendAdvisory(ctx, from, chatID)
	}
	return b.sendTimerList(ctx, chatID)
}

func (b *Bot) askDeleteConfirmation(chatID int64, timerID string) error {
	timer, ok := b.store.Get(timerID)
	if !ok {
		return b.sendText(chatID, "Timer not found, maybe it was already deleted.")
	}

	out := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete \"%s\"?", html.EscapeString(timer.Label)))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Delete", cbConfirmPrefix+timerID),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbCancelPrefix+timerID),
		),
	)
	_, err := b.api.Send(out)
	return err
}

func (b *Bot) applyTheme(ctx context.Context, from *tgbotapi.User, chatID int64, theme string) error {
	if !model.ValidTheme(theme) {
		return b.sendText(chatID, "Unknown theme.")
	}
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil {
		return err
	}
	if err := b.userRepo.SetTheme(ctx, user, theme); err != nil {
		log.Printf("set theme: %v", err)
		return b.sendText(chatID, "Could not save the theme, try again later.")
	}
	return b.sendText(chatID, fmt.Sprintf("🎨 Theme set to <b>%s</b>.", theme))
}

// maybeSendAdvisory tells the user once that completion alerts are
// currently unavailable; timers keep running regardless.
func (b *Bot) maybeSendAdvisory(ctx context.Context, from *tgbotapi.User, chatID int64) {
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil || user.AdvisorySentAt != nil {
		return
	}
	if err := b.userRepo.MarkAdvisorySent(ctx, user, time.Now()); err != nil {
		log.Printf("mark advisory: %v", err)
	}
	if err := b.sendText(chatID, "⚠️ I couldn't arm a completion alert — the timer still runs, you just won't get pinged. Starting it again re-tries."); err != nil {
		log.Printf("send advisory: %v", err)
	}
}

// SendDailySummary pushes the current timer list to the owner chat.
func (b *Bot) SendDailySummary(ctx context.Context) error {
	owner, err := b.userRepo.FindOwner(ctx)
	if err != nil {
		return err
	}
	if owner == nil || owner.ChatID == 0 {
		return nil
	}

	b.store.ReconcileAll()
	timers := b.store.Timers()

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily timer summary</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", time.Now().Format("02.01.2006")))
	if len(timers) == 0 {
		builder.WriteString("— no timers configured")
	}
	for i, t := range timers {
		builder.WriteString(formatTimerLine(i, t))
	}

	return b.sendText(owner.ChatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, chatID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) reportStoreError(chatID int64, err error) error {
	if errors.Is(err, service.ErrTimerNotFound) {
		return b.sendText(chatID, "Timer not found, maybe it was already deleted.")
	}
	return b.sendText(chatID, fmt.Sprintf("Something went wrong: %s", html.EscapeString(err.Error())))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func isSkipInput(text string) bool {
	return text == btnSkip || strings.EqualFold(text, "skip")
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func presetKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("5"),
			tgbotapi.NewKeyboardButton("10"),
			tgbotapi.NewKeyboardButton("25"),
			tgbotapi.NewKeyboardButton("60"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func intervalKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("daily"),
			tgbotapi.NewKeyboardButton("weekly"),
			tgbotapi.NewKeyboardButton("monthly"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}
