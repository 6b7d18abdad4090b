package wizard

import (
	"fmt"
	"strings"

	"github.com/coresuz/tangabot/core/telegram/format"
)

// Keyboard identifies which inline keyboard the transport should
// render with a reply. The engine stays free of markup types.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardTarget
	KeyboardImageChoice
	KeyboardButtonChoice
	KeyboardConfirm
	KeyboardCancel
	KeyboardCancelAdmin
)

// Reply is one outbound message the engine asks the transport to send.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// User-facing notices outside the per-step prompts.
const (
	msgCancelled       = "Подкаст отменён."
	msgActionCancelled = "Действие отменено."
	msgNothingToDo     = "Нет активного действия."
	msgStoreFailure    = "Что-то пошло не так, попробуйте ещё раз."
	msgNotAllowed      = "У вас нет прав для этого действия."
	msgFlowReset       = "Сессия устарела и была сброшена. Начните заново."
	msgPrimaryKept     = "Главного администратора нельзя удалить."
)

var promptTexts = map[Step]string{
	StepTarget:       "Кому отправить подкаст?",
	StepTargetID:     "Отправьте числовой ID получателя.",
	StepImageChoice:  "Прикрепить изображение к подкасту?",
	StepImageUpload:  "Отправьте изображение (JPEG, до 5 МБ).",
	StepTitle:        "Отправьте заголовок подкаста.",
	StepContent:      "Отправьте текст подкаста.",
	StepButtonChoice: "Добавить кнопку-ссылку?",
	StepButtonText:   "Отправьте текст кнопки.",
	StepButtonURL:    "Отправьте ссылку для кнопки (http или https).",
	StepAdminAdd:     "Отправьте числовой ID нового администратора.",
	StepAdminRemove:  "Отправьте числовой ID администратора для удаления.",
	StepConfigEdit:   "Отправьте новую конфигурацию одной строкой:\nfirebase_url=<url> firebase_secret=<secret> mini_app_url=<url>",
}

var rejectTexts = map[Step]string{
	StepTargetID:    "ID должен состоять только из цифр.",
	StepImageUpload: "Нужно изображение подходящего размера.",
	StepButtonURL:   "Ссылка должна начинаться с http:// или https://.",
	StepAdminAdd:    "ID должен состоять только из цифр.",
	StepAdminRemove: "ID должен состоять только из цифр.",
	StepConfigEdit:  "Строка не соответствует формату.",
}

var stepKeyboards = map[Step]Keyboard{
	StepTarget:       KeyboardTarget,
	StepImageChoice:  KeyboardImageChoice,
	StepButtonChoice: KeyboardButtonChoice,
	StepConfirm:      KeyboardConfirm,
	StepAdminAdd:     KeyboardCancelAdmin,
	StepAdminRemove:  KeyboardCancelAdmin,
	StepConfigEdit:   KeyboardCancelAdmin,
}

// promptFor builds the prompt for a step given the current draft.
func promptFor(step Step, d *PodcastDraft) Reply {
	if step == StepConfirm {
		return Reply{Text: confirmPreview(d), Keyboard: KeyboardConfirm}
	}
	kb, ok := stepKeyboards[step]
	if !ok {
		kb = KeyboardCancel
	}
	return Reply{Text: promptTexts[step], Keyboard: kb}
}

// rePrompt prefixes the step prompt with a short rejection note.
func rePrompt(step Step, d *PodcastDraft) Reply {
	p := promptFor(step, d)
	note := rejectTexts[step]
	if note == "" {
		note = "Не получилось распознать ввод."
	}
	p.Text = note + "\n\n" + p.Text
	return p
}

func confirmPreview(d *PodcastDraft) string {
	var b strings.Builder
	b.WriteString("<b>Проверьте подкаст</b>\n\n")
	fmt.Fprintf(&b, "<b>%s</b>\n%s\n\n", format.EscapeHTML(d.Title), format.EscapeHTML(d.Content))
	fmt.Fprintf(&b, "Аудитория: %s", targetLabel(d))
	if d.Image != nil {
		b.WriteString("\nИзображение: да")
	} else {
		b.WriteString("\nИзображение: нет")
	}
	if d.Button != nil {
		fmt.Fprintf(&b, "\nКнопка: %s → %s", format.EscapeHTML(d.Button.Text), format.EscapeHTML(d.Button.URL))
	} else {
		b.WriteString("\nКнопка: нет")
	}
	b.WriteString("\n\nОтправить?")
	return b.String()
}

func targetLabel(d *PodcastDraft) string {
	switch d.Target {
	case "all":
		return "все пользователи"
	case "recent_day":
		return "активные за сутки"
	case "recent_week":
		return "активные за неделю"
	case "recent_month":
		return "активные за месяц"
	case "specific":
		return fmt.Sprintf("пользователь %d", d.TargetID)
	}
	return d.Target
}
