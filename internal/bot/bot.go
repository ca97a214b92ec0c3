package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/quiz"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// sender is the part of the Telegram API the bot talks through
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot represents the Telegram front-end of the quiz
type Bot struct {
	api      sender
	client   *tgbotapi.BotAPI
	engine   *quiz.Engine
	subjects *database.SubjectRepository
	topics   *database.TopicRepository
	question *database.QuestionRepository
	users    *database.UserRepository
	tgUsers  *database.TelegramUserRepository
	states   *StateManager
	config   *BotConfig
}

// New creates a new bot instance connected to the Telegram API
func New(config *BotConfig, db *sqlx.DB, engine *quiz.Engine) (*Bot, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not set")
	}

	client, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	client.Debug = config.Debug
	log.Printf("Authorized on account %s", client.Self.UserName)

	b := newBot(client, config, db, engine)
	b.client = client
	return b, nil
}

func newBot(api sender, config *BotConfig, db *sqlx.DB, engine *quiz.Engine) *Bot {
	return &Bot{
		api:      api,
		engine:   engine,
		subjects: database.NewSubjectRepository(db),
		topics:   database.NewTopicRepository(db),
		question: database.NewQuestionRepository(db),
		users:    database.NewUserRepository(db),
		tgUsers:  database.NewTelegramUserRepository(db),
		states:   NewStateManager(config.StateTTL),
		config:   config,
	}
}

// Start receives updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return fmt.Errorf("bot is not connected")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout
	updates := b.client.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			log.Println("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic while handling update %d: %v", update.UpdateID, r)
		}
	}()

	var err error
	switch {
	case update.Message != nil && update.Message.From != nil:
		message := update.Message
		switch {
		case message.IsCommand():
			err = b.handleCommand(ctx, message)
		case message.Contact != nil:
			err = b.handleContact(ctx, message)
		default:
			err = b.handleText(ctx, message)
		}
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		log.Printf("Error handling update %d: %v", update.UpdateID, err)
	}
}

// RemindAttempt sends a reminder about an unfinished attempt with a button
// that resumes it
func (b *Bot) RemindAttempt(ctx context.Context, attempt database.StaleAttempt) error {
	lang := attempt.LanguageCode
	msg := tgbotapi.NewMessage(attempt.ChatID, tr(lang, "reminder", attempt.TopicName))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: tr(lang, "continue_quiz"), CallbackData: fmt.Sprintf("next:%d", attempt.ID)}},
	})
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder for attempt %d: %w", attempt.ID, err)
	}
	return nil
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons(lang string) [][]MenuButton {
	return [][]MenuButton{
		{{Text: tr(lang, "menu_subjects"), CallbackData: "subjects"}},
		{
			{Text: tr(lang, "menu_history"), CallbackData: "history"},
			{Text: tr(lang, "menu_help"), CallbackData: "help"},
		},
	}
}

func (b *Bot) showMainMenu(chatID int64, lang string) error {
	msg := tgbotapi.NewMessage(chatID, tr(lang, "main_menu"))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(lang))
	return b.sendMessage(msg)
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// editOrSend replaces the menu message a button was pressed on, or sends a
// new one when there is nothing to edit
func (b *Bot) editOrSend(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	if messageID == 0 {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = keyboard
		return b.sendMessage(msg)
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// sendError reports a failed operation to the user in their language
func (b *Bot) sendError(chatID int64, lang string, err error) error {
	if sendErr := b.sendText(chatID, errorText(lang, err)); sendErr != nil {
		return sendErr
	}
	if _, ok := quiz.KindOf(err); ok || errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return err
}

// errorText maps an error to the text shown to the user
func errorText(lang string, err error) string {
	kind, ok := quiz.KindOf(err)
	if !ok {
		if errors.Is(err, database.ErrNotFound) {
			return tr(lang, "err_not_found")
		}
		return tr(lang, "err_generic")
	}
	switch kind {
	case quiz.KindEmptyTopic:
		return tr(lang, "err_empty_topic")
	case quiz.KindAttemptCompleted:
		return tr(lang, "err_attempt_completed")
	case quiz.KindInvalidChoice:
		return tr(lang, "err_invalid_choice")
	case quiz.KindDuplicateAnswer:
		return tr(lang, "err_duplicate_answer")
	case quiz.KindUnauthenticated:
		return tr(lang, "need_registration")
	default:
		return tr(lang, "err_not_found")
	}
}
