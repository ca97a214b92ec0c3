package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/quizbot/internal/quiz"
	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes. Every quiz button carries the attempt id so a turn
// can be served without any progress kept in memory.
const (
	callbackLanguage = "lang:"
	callbackSubject  = "subj:"
	callbackTopic    = "topic:"
	callbackStart    = "start:"
	callbackAnswer   = "ans:"
	callbackNext     = "next:"
	callbackSubjects = "subjects"
	callbackHistory  = "history"
	callbackHelp     = "help"
)

// account stores the sender's Telegram profile and returns the stored account
func (b *Bot) account(ctx context.Context, from *tgbotapi.User, chatID int64) (*models.TelegramUser, error) {
	tu := &models.TelegramUser{
		TelegramID: from.ID,
		ChatID:     chatID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}
	if _, err := b.tgUsers.Upsert(ctx, tu); err != nil {
		return nil, err
	}
	if !isSupportedLanguage(tu.LanguageCode) {
		tu.LanguageCode = defaultLanguage
	}
	return tu, nil
}

// currentUser returns the application user linked to the Telegram account
func currentUser(tu *models.TelegramUser) (int64, error) {
	if tu.UserID == nil {
		return 0, quiz.ErrUnauthenticated
	}
	return *tu.UserID, nil
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	tu, err := b.account(ctx, message.From, chatID)
	if err != nil {
		return b.sendError(chatID, defaultLanguage, err)
	}
	lang := tu.LanguageCode

	switch message.Command() {
	case "start":
		return b.handleStart(chatID, tu)
	case "subjects":
		if _, err := currentUser(tu); err != nil {
			return b.sendError(chatID, lang, err)
		}
		return b.showSubjects(ctx, chatID, 0, lang)
	case "history":
		userID, err := currentUser(tu)
		if err != nil {
			return b.sendError(chatID, lang, err)
		}
		return b.showHistory(ctx, chatID, userID, lang)
	case "help":
		return b.sendHelp(chatID, lang)
	case "cancel":
		b.states.Clear(tu.TelegramID)
		msg := tgbotapi.NewMessage(chatID, tr(lang, "cancelled"))
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		return b.sendMessage(msg)
	default:
		return b.sendText(chatID, tr(lang, "unknown_command"))
	}
}

func (b *Bot) handleStart(chatID int64, tu *models.TelegramUser) error {
	if tu.UserID != nil {
		b.states.Clear(tu.TelegramID)
		if err := b.sendText(chatID, tr(tu.LanguageCode, "welcome_back", tu.FirstName)); err != nil {
			return err
		}
		return b.showMainMenu(chatID, tu.LanguageCode)
	}

	b.states.SetStep(tu.TelegramID, StepLanguage)
	var buttons [][]MenuButton
	for i := 0; i < len(languages); i += 2 {
		row := []MenuButton{}
		for _, l := range languages[i:min(i+2, len(languages))] {
			row = append(row, MenuButton{Text: l.Label, CallbackData: callbackLanguage + l.Code})
		}
		buttons = append(buttons, row)
	}
	msg := tgbotapi.NewMessage(chatID, tr(tu.LanguageCode, "choose_language"))
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.sendMessage(msg)
}

func (b *Bot) handleLanguage(ctx context.Context, chatID int64, tu *models.TelegramUser, code string) error {
	if !isSupportedLanguage(code) {
		return fmt.Errorf("unsupported language %q", code)
	}
	if err := b.tgUsers.UpdateLanguage(ctx, tu.TelegramID, code); err != nil {
		return b.sendError(chatID, tu.LanguageCode, err)
	}

	if tu.UserID != nil {
		b.states.Clear(tu.TelegramID)
		return b.showMainMenu(chatID, code)
	}
	b.states.SetStep(tu.TelegramID, StepPhone)
	return b.requestPhone(chatID, code)
}

func (b *Bot) requestPhone(chatID int64, lang string) error {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(tr(lang, "share_phone_button"))),
	)
	keyboard.OneTimeKeyboard = true
	msg := tgbotapi.NewMessage(chatID, tr(lang, "share_phone"))
	msg.ReplyMarkup = keyboard
	return b.sendMessage(msg)
}

// handleContact stores the phone number shared during registration
func (b *Bot) handleContact(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	tu, err := b.account(ctx, message.From, chatID)
	if err != nil {
		return b.sendError(chatID, defaultLanguage, err)
	}
	lang := tu.LanguageCode
	if tu.UserID != nil {
		return b.showMainMenu(chatID, lang)
	}

	contact := message.Contact
	if contact.UserID != 0 && contact.UserID != message.From.ID {
		return b.sendText(chatID, tr(lang, "phone_not_own"))
	}
	if err := b.tgUsers.UpdatePhone(ctx, tu.TelegramID, normalizePhone(contact.PhoneNumber)); err != nil {
		return b.sendError(chatID, lang, err)
	}

	b.states.SetStep(tu.TelegramID, StepFullName)
	msg := tgbotapi.NewMessage(chatID, tr(lang, "enter_full_name"))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	return b.sendMessage(msg)
}

// handleText handles plain messages; the only free text the bot expects is
// the full name at the end of registration
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	tu, err := b.account(ctx, message.From, chatID)
	if err != nil {
		return b.sendError(chatID, defaultLanguage, err)
	}
	lang := tu.LanguageCode
	state := b.states.Get(tu.TelegramID)

	switch {
	case tu.UserID != nil:
		if err := b.sendText(chatID, tr(lang, "use_buttons")); err != nil {
			return err
		}
		return b.showMainMenu(chatID, lang)
	case state.Step == StepFullName || tu.PhoneNumber != "":
		return b.completeRegistration(ctx, chatID, tu, message.Text)
	case state.Step == StepPhone:
		return b.requestPhone(chatID, lang)
	default:
		return b.sendText(chatID, tr(lang, "need_registration"))
	}
}

func (b *Bot) completeRegistration(ctx context.Context, chatID int64, tu *models.TelegramUser, text string) error {
	lang := tu.LanguageCode
	if tu.PhoneNumber == "" {
		b.states.SetStep(tu.TelegramID, StepPhone)
		return b.requestPhone(chatID, lang)
	}

	fullName := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(fullName) < 2 {
		return b.sendText(chatID, tr(lang, "invalid_full_name"))
	}

	user, created, err := b.users.GetOrCreateByPhone(ctx, tu.PhoneNumber, fullName)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}
	if err := b.tgUsers.LinkUser(ctx, tu.TelegramID, user.ID); err != nil {
		return b.sendError(chatID, lang, err)
	}
	b.states.Clear(tu.TelegramID)
	log.Printf("Telegram user %d linked to user %d (created: %v)", tu.TelegramID, user.ID, created)

	if err := b.sendText(chatID, tr(lang, "registered", fullName)); err != nil {
		return err
	}
	return b.showMainMenu(chatID, lang)
}

// handleCallback handles inline keyboard presses
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}

	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data

	tu, err := b.account(ctx, callback.From, chatID)
	if err != nil {
		return b.sendError(chatID, defaultLanguage, err)
	}
	lang := tu.LanguageCode

	if strings.HasPrefix(data, callbackLanguage) {
		return b.handleLanguage(ctx, chatID, tu, strings.TrimPrefix(data, callbackLanguage))
	}

	userID, err := currentUser(tu)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}

	switch {
	case data == callbackSubjects:
		// Sent as a new message so a result it was pressed under stays visible
		return b.showSubjects(ctx, chatID, 0, lang)
	case data == callbackHistory:
		return b.showHistory(ctx, chatID, userID, lang)
	case data == callbackHelp:
		return b.sendHelp(chatID, lang)
	case strings.HasPrefix(data, callbackSubject):
		ids, err := parseIDs(data, callbackSubject, 1)
		if err != nil {
			return err
		}
		return b.showTopics(ctx, chatID, messageID, lang, ids[0])
	case strings.HasPrefix(data, callbackTopic):
		ids, err := parseIDs(data, callbackTopic, 1)
		if err != nil {
			return err
		}
		return b.showTopicInfo(ctx, chatID, messageID, lang, ids[0])
	case strings.HasPrefix(data, callbackStart):
		ids, err := parseIDs(data, callbackStart, 1)
		if err != nil {
			return err
		}
		return b.startQuiz(ctx, chatID, userID, lang, ids[0])
	case strings.HasPrefix(data, callbackAnswer):
		ids, err := parseIDs(data, callbackAnswer, 3)
		if err != nil {
			return err
		}
		return b.submitAnswer(ctx, chatID, messageID, userID, lang, ids[0], ids[1], ids[2])
	case strings.HasPrefix(data, callbackNext):
		ids, err := parseIDs(data, callbackNext, 1)
		if err != nil {
			return err
		}
		return b.nextQuestion(ctx, chatID, userID, lang, ids[0])
	default:
		return fmt.Errorf("unknown callback data %q", data)
	}
}

func (b *Bot) showSubjects(ctx context.Context, chatID int64, messageID int, lang string) error {
	subjects, err := b.subjects.GetAll(ctx)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}
	if len(subjects) == 0 {
		return b.sendText(chatID, tr(lang, "no_subjects"))
	}

	var buttons [][]MenuButton
	for _, s := range subjects {
		buttons = append(buttons, []MenuButton{{Text: s.Name, CallbackData: fmt.Sprintf("%s%d", callbackSubject, s.ID)}})
	}
	return b.editOrSend(chatID, messageID, tr(lang, "choose_subject"), createKeyboard(buttons))
}

func (b *Bot) showTopics(ctx context.Context, chatID int64, messageID int, lang string, subjectID int64) error {
	subject, err := b.subjects.GetByID(ctx, subjectID)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}
	topics, err := b.topics.GetBySubject(ctx, subjectID)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}

	back := []MenuButton{{Text: tr(lang, "back"), CallbackData: callbackSubjects}}
	if len(topics) == 0 {
		return b.editOrSend(chatID, messageID, tr(lang, "no_topics"), createKeyboard([][]MenuButton{back}))
	}

	var buttons [][]MenuButton
	for _, t := range topics {
		buttons = append(buttons, []MenuButton{{
			Text:         fmt.Sprintf("%s (%d)", t.Name, t.QuestionCount),
			CallbackData: fmt.Sprintf("%s%d", callbackTopic, t.ID),
		}})
	}
	buttons = append(buttons, back)
	return b.editOrSend(chatID, messageID, tr(lang, "choose_topic", subject.Name), createKeyboard(buttons))
}

func (b *Bot) showTopicInfo(ctx context.Context, chatID int64, messageID int, lang string, topicID int64) error {
	topic, err := b.topics.GetByID(ctx, topicID)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}

	description := topic.Description
	if description == "" {
		description = "-"
	}
	keyboard := createKeyboard([][]MenuButton{
		{{Text: tr(lang, "start_quiz"), CallbackData: fmt.Sprintf("%s%d", callbackStart, topic.ID)}},
		{{Text: tr(lang, "back"), CallbackData: fmt.Sprintf("%s%d", callbackSubject, topic.SubjectID)}},
	})
	text := tr(lang, "quiz_info", topic.Name, description, topic.QuestionCount)
	return b.editOrSend(chatID, messageID, text, keyboard)
}

func (b *Bot) startQuiz(ctx context.Context, chatID, userID int64, lang string, topicID int64) error {
	start, err := b.engine.StartAttempt(ctx, userID, topicID)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}
	return b.sendQuestion(chatID, lang, start.Attempt.ID, start.Question)
}

func (b *Bot) nextQuestion(ctx context.Context, chatID, userID int64, lang string, attemptID int64) error {
	next, err := b.engine.NextQuestion(ctx, userID, attemptID)
	if errors.Is(err, quiz.ErrAttemptCompleted) {
		result, err := b.engine.GetResult(ctx, userID, attemptID)
		if err != nil {
			return b.sendError(chatID, lang, err)
		}
		return b.sendResult(chatID, lang, result)
	}
	if err != nil {
		return b.sendError(chatID, lang, err)
	}
	return b.sendNext(chatID, lang, attemptID, next)
}

func (b *Bot) submitAnswer(ctx context.Context, chatID int64, messageID int, userID int64, lang string, attemptID, questionID, choiceID int64) error {
	sub, err := b.engine.SubmitAnswer(ctx, userID, attemptID, questionID, choiceID)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}

	// The question is answered; drop its buttons so it cannot be pressed again
	strip := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(strip); err != nil {
		log.Printf("Error removing answer buttons: %v", err)
	}

	var feedback string
	if sub.IsCorrect {
		feedback = tr(lang, "correct")
	} else {
		correctText := ""
		if choice, err := b.question.GetChoice(ctx, sub.CorrectChoiceID); err == nil {
			correctText = choice.Text
		} else {
			log.Printf("Error loading correct choice %d: %v", sub.CorrectChoiceID, err)
		}
		feedback = tr(lang, "wrong", correctText)
	}
	if sub.Explanation != "" {
		feedback += "\n\n" + tr(lang, "explanation", sub.Explanation)
	}
	if err := b.sendText(chatID, feedback); err != nil {
		return err
	}

	return b.sendNext(chatID, lang, attemptID, sub.Next)
}

func (b *Bot) sendNext(chatID int64, lang string, attemptID int64, next *quiz.Next) error {
	if next.Completed {
		return b.sendResult(chatID, lang, next.Result)
	}
	return b.sendQuestion(chatID, lang, attemptID, next.Question)
}

func (b *Bot) sendQuestion(chatID int64, lang string, attemptID int64, q *quiz.QuestionView) error {
	text := tr(lang, "question_header", q.Number, q.Total) + "\n\n" + q.Text

	var buttons [][]MenuButton
	for _, c := range q.Choices {
		buttons = append(buttons, []MenuButton{{
			Text:         c.Text,
			CallbackData: fmt.Sprintf("%s%d:%d:%d", callbackAnswer, attemptID, q.ID, c.ID),
		}})
	}
	keyboard := createKeyboard(buttons)

	if q.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(q.ImageURL))
		photo.Caption = text
		photo.ReplyMarkup = keyboard
		return b.sendMessage(photo)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return b.sendMessage(msg)
}

func (b *Bot) sendResult(chatID int64, lang string, result *quiz.Result) error {
	text := tr(lang, "quiz_finished", result.TopicName, result.Score, result.TotalQuestions, result.Percentage) +
		"\n\n" + tr(lang, gradeKey(result.Percentage))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: tr(lang, "another_subject"), CallbackData: callbackSubjects}},
		{{Text: tr(lang, "retake"), CallbackData: fmt.Sprintf("%s%d", callbackStart, result.TopicID)}},
	})
	return b.sendMessage(msg)
}

func (b *Bot) showHistory(ctx context.Context, chatID, userID int64, lang string) error {
	results, err := b.engine.ListAttempts(ctx, userID, b.config.HistoryLimit)
	if err != nil {
		return b.sendError(chatID, lang, err)
	}

	text := tr(lang, "history_empty")
	if len(results) > 0 {
		var sb strings.Builder
		sb.WriteString(tr(lang, "history_header"))
		for _, r := range results {
			status := tr(lang, "status_in_progress")
			if r.Status == models.AttemptCompleted {
				status = tr(lang, "status_completed")
			}
			sb.WriteString("\n")
			sb.WriteString(tr(lang, "history_item", r.TopicName, r.Score, r.TotalQuestions, r.Percentage, status))
		}
		text = sb.String()
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(lang))
	return b.sendMessage(msg)
}

func (b *Bot) sendHelp(chatID int64, lang string) error {
	msg := tgbotapi.NewMessage(chatID, tr(lang, "help"))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(lang))
	return b.sendMessage(msg)
}

// parseIDs reads n colon separated ids following prefix
func parseIDs(data, prefix string, n int) ([]int64, error) {
	parts := strings.Split(strings.TrimPrefix(data, prefix), ":")
	if len(parts) != n {
		return nil, fmt.Errorf("malformed callback data %q", data)
	}
	ids := make([]int64, n)
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed callback data %q: %w", data, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// normalizePhone keeps digits and a leading plus sign
func normalizePhone(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return "+" + sb.String()
}
