package format

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeHTML escapes user-supplied text for Telegram HTML parse mode.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// Bold wraps text in bold tags without escaping it.
func Bold(text string) string {
	return "<b>" + text + "</b>"
}

// Code wraps text in inline code tags without escaping it.
func Code(text string) string {
	return "<code>" + text + "</code>"
}
