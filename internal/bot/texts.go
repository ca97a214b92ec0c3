package bot

import "fmt"

const defaultLanguage = "ru"

// language is one selectable interface language
type language struct {
	Code  string
	Label string
}

// languages lists the selectable languages in keyboard order. Missing
// translations fall back to Russian.
var languages = []language{
	{"uz", "🇺🇿 O'zbekcha"},
	{"ru", "🇷🇺 Русский"},
	{"en", "🇬🇧 English"},
	{"tr", "🇹🇷 Türkçe"},
	{"ar", "🇸🇦 العربية"},
	{"ko", "🇰🇷 한국어"},
}

func isSupportedLanguage(code string) bool {
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

var translations = map[string]map[string]string{
	"ru": {
		"choose_language":       "🌐 Выберите язык:",
		"share_phone":           "📱 Чтобы продолжить, поделитесь номером телефона с помощью кнопки ниже.",
		"share_phone_button":    "📱 Поделиться номером",
		"phone_not_own":         "⚠️ Пожалуйста, отправьте свой собственный номер с помощью кнопки.",
		"enter_full_name":       "✍️ Введите ваше полное имя (имя и фамилию):",
		"invalid_full_name":     "⚠️ Имя слишком короткое, попробуйте ещё раз.",
		"registered":            "✅ Регистрация завершена, %s!",
		"welcome_back":          "👋 С возвращением, %s!",
		"main_menu":             "🤖 Главное меню\n\nВыберите нужный раздел:",
		"menu_subjects":         "📚 Предметы",
		"menu_history":          "📊 История",
		"menu_help":             "❓ Помощь",
		"choose_subject":        "📚 Выберите предмет:",
		"no_subjects":           "Пока нет доступных предметов.",
		"choose_topic":          "📖 %s\n\nВыберите тему:",
		"no_topics":             "В этом предмете пока нет тем.",
		"back":                  "⬅️ Назад",
		"quiz_info":             "📝 Название: %s\n📄 Описание: %s\n❓ Количество вопросов: %d",
		"start_quiz":            "▶️ Начать тест",
		"question_header":       "❓ Вопрос %d/%d",
		"correct":               "✅ Правильно!",
		"wrong":                 "❌ Неправильно. Правильный ответ: %s",
		"explanation":           "💡 %s",
		"quiz_finished":         "🏁 Тест завершён!\n\n📖 Тема: %s\n🎯 Результат: %d/%d (%.2f%%)",
		"grade_excellent":       "🏆 Отлично! Вы прекрасно знаете эту тему.",
		"grade_good":            "👍 Хорошо! Но есть что повторить.",
		"grade_review":          "📚 Стоит повторить материал и попробовать снова.",
		"another_subject":       "📚 Выбрать другой предмет",
		"retake":                "🔄 Пройти снова",
		"history_header":        "📊 Ваши последние тесты:",
		"history_empty":         "Вы ещё не проходили тесты.",
		"history_item":          "• %s: %d/%d (%.2f%%), %s",
		"status_in_progress":    "в процессе",
		"status_completed":      "завершён",
		"help":                  "📖 Справка\n\n/start - регистрация и главное меню\n/subjects - выбрать предмет\n/history - история тестов\n/cancel - отменить текущее действие\n/help - эта справка\n\nОтвечайте на вопросы, нажимая на кнопки с вариантами ответа.",
		"cancelled":             "Действие отменено.",
		"unknown_command":       "Неизвестная команда. Используйте /help.",
		"use_buttons":           "Пожалуйста, используйте кнопки меню.",
		"need_registration":     "Сначала пройдите регистрацию: /start",
		"reminder":              "⏰ Вы не закончили тест по теме «%s». Продолжим?",
		"continue_quiz":         "▶️ Продолжить",
		"err_empty_topic":       "В этой теме пока нет вопросов.",
		"err_attempt_completed": "Этот тест уже завершён.",
		"err_invalid_choice":    "Этот вариант не относится к вопросу.",
		"err_duplicate_answer":  "Вы уже ответили на этот вопрос.",
		"err_not_found":         "Не найдено.",
		"err_generic":           "❌ Произошла ошибка. Пожалуйста, попробуйте позже.",
	},
	"en": {
		"choose_language":       "🌐 Choose your language:",
		"share_phone":           "📱 To continue, share your phone number with the button below.",
		"share_phone_button":    "📱 Share phone number",
		"phone_not_own":         "⚠️ Please send your own number using the button.",
		"enter_full_name":       "✍️ Enter your full name (first and last name):",
		"invalid_full_name":     "⚠️ The name is too short, please try again.",
		"registered":            "✅ Registration complete, %s!",
		"welcome_back":          "👋 Welcome back, %s!",
		"main_menu":             "🤖 Main menu\n\nChoose a section:",
		"menu_subjects":         "📚 Subjects",
		"menu_history":          "📊 History",
		"menu_help":             "❓ Help",
		"choose_subject":        "📚 Choose a subject:",
		"no_subjects":           "No subjects are available yet.",
		"choose_topic":          "📖 %s\n\nChoose a topic:",
		"no_topics":             "This subject has no topics yet.",
		"back":                  "⬅️ Back",
		"quiz_info":             "📝 Title: %s\n📄 Description: %s\n❓ Questions: %d",
		"start_quiz":            "▶️ Start quiz",
		"question_header":       "❓ Question %d/%d",
		"correct":               "✅ Correct!",
		"wrong":                 "❌ Wrong. The correct answer is: %s",
		"explanation":           "💡 %s",
		"quiz_finished":         "🏁 Quiz finished!\n\n📖 Topic: %s\n🎯 Score: %d/%d (%.2f%%)",
		"grade_excellent":       "🏆 Excellent! You know this topic very well.",
		"grade_good":            "👍 Good job! There is still something to review.",
		"grade_review":          "📚 Review the material and try again.",
		"another_subject":       "📚 Choose another subject",
		"retake":                "🔄 Retake",
		"history_header":        "📊 Your recent quizzes:",
		"history_empty":         "You have not taken any quizzes yet.",
		"history_item":          "• %s: %d/%d (%.2f%%), %s",
		"status_in_progress":    "in progress",
		"status_completed":      "completed",
		"help":                  "📖 Help\n\n/start - registration and main menu\n/subjects - choose a subject\n/history - quiz history\n/cancel - cancel the current action\n/help - this help\n\nAnswer questions by tapping the choice buttons.",
		"cancelled":             "Action cancelled.",
		"unknown_command":       "Unknown command. Use /help.",
		"use_buttons":           "Please use the menu buttons.",
		"need_registration":     "Please register first: /start",
		"reminder":              "⏰ You have not finished the quiz on \"%s\". Shall we continue?",
		"continue_quiz":         "▶️ Continue",
		"err_empty_topic":       "This topic has no questions yet.",
		"err_attempt_completed": "This quiz is already finished.",
		"err_invalid_choice":    "That choice does not belong to the question.",
		"err_duplicate_answer":  "You have already answered this question.",
		"err_not_found":         "Not found.",
		"err_generic":           "❌ Something went wrong. Please try again later.",
	},
	"uz": {
		"choose_language":    "🌐 Tilni tanlang:",
		"share_phone":        "📱 Davom etish uchun quyidagi tugma orqali telefon raqamingizni yuboring.",
		"share_phone_button": "📱 Raqamni yuborish",
		"enter_full_name":    "✍️ To'liq ismingizni kiriting (ism va familiya):",
		"registered":         "✅ Ro'yxatdan o'tish yakunlandi, %s!",
		"welcome_back":       "👋 Xush kelibsiz, %s!",
		"main_menu":          "🤖 Asosiy menyu\n\nBo'limni tanlang:",
		"menu_subjects":      "📚 Fanlar",
		"menu_history":       "📊 Tarix",
		"menu_help":          "❓ Yordam",
		"choose_subject":     "📚 Fanni tanlang:",
		"choose_topic":       "📖 %s\n\nMavzuni tanlang:",
		"back":               "⬅️ Orqaga",
		"quiz_info":          "📝 Nomi: %s\n📄 Tavsif: %s\n❓ Savollar soni: %d",
		"start_quiz":         "▶️ Testni boshlash",
		"question_header":    "❓ Savol %d/%d",
		"correct":            "✅ To'g'ri!",
		"wrong":              "❌ Noto'g'ri. To'g'ri javob: %s",
		"quiz_finished":      "🏁 Test yakunlandi!\n\n📖 Mavzu: %s\n🎯 Natija: %d/%d (%.2f%%)",
		"another_subject":    "📚 Boshqa fanni tanlash",
		"retake":             "🔄 Qayta topshirish",
		"continue_quiz":      "▶️ Davom etish",
	},
}

// tr returns the translated text for key, formatted with args
func tr(lang, key string, args ...interface{}) string {
	text, ok := translations[lang][key]
	if !ok {
		text, ok = translations[defaultLanguage][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// gradeKey picks the closing remark for a percentage
func gradeKey(percentage float64) string {
	switch {
	case percentage >= 80:
		return "grade_excellent"
	case percentage >= 60:
		return "grade_good"
	default:
		return "grade_review"
	}
}
