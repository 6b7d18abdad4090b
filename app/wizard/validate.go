package wizard

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/coresuz/tangabot/app/storage"
)

// errInvalidInput marks a recoverable validation failure: the step
// re-prompts and does not advance.
var errInvalidInput = errors.New("wizard: invalid input")

var (
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
	configRe = regexp.MustCompile(`^firebase_url=(\S+)\s+firebase_secret=(\S+)\s+mini_app_url=(\S+)$`)
)

func parseNonEmpty(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errInvalidInput
	}
	return text, nil
}

func parseID(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if !digitsRe.MatchString(text) {
		return 0, errInvalidInput
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidInput
	}
	return id, nil
}

func parseURL(text string) (string, error) {
	text = strings.TrimSpace(text)
	u, err := url.Parse(text)
	if err != nil {
		return "", errInvalidInput
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errInvalidInput
	}
	return text, nil
}

// parseConfigGrammar parses the fixed key=value line for the
// configuration wizard.
func parseConfigGrammar(text string) (map[string]string, error) {
	m := configRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, errInvalidInput
	}
	return map[string]string{
		storage.SettingFirebaseURL:    m[1],
		storage.SettingFirebaseSecret: m[2],
		storage.SettingMiniAppURL:     m[3],
	}, nil
}
