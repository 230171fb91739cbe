// Package i18n renders the user-facing lifecycle messages.
package i18n

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	keyOpenHour    = "abandoned.open.hour"
	keyOpenHours   = "abandoned.open.hours"
	keyOpenMinute  = "abandoned.open.minute"
	keyOpenMinutes = "abandoned.open.minutes"
	keyPrompt      = "abandoned.prompt"
)

var supportedTags = []language.Tag{
	language.Spanish,
	language.English,
}

var tagMatcher = language.NewMatcher(supportedTags)

func init() {
	es := language.Spanish
	message.SetString(es, keyOpenHour, "%d hora")
	message.SetString(es, keyOpenHours, "%d horas")
	message.SetString(es, keyOpenMinute, "%d minuto")
	message.SetString(es, keyOpenMinutes, "%d minutos")
	message.SetString(es, keyPrompt, "Tienes una sesión abierta desde hace %s. ¿Recuperarla o descartarla?")

	en := language.English
	message.SetString(en, keyOpenHour, "%d hour")
	message.SetString(en, keyOpenHours, "%d hours")
	message.SetString(en, keyOpenMinute, "%d minute")
	message.SetString(en, keyOpenMinutes, "%d minutes")
	message.SetString(en, keyPrompt, "You have a session open for %s. Recover it or discard it?")
}

// Messages formats lifecycle messages for one language
type Messages struct {
	printer *message.Printer
}

// New returns Messages for the closest supported match of locale. Unknown locales fall back to Spanish.
func New(locale string) Messages {
	tag := language.Spanish
	if parsed, err := language.Parse(locale); err == nil {
		_, idx, _ := tagMatcher.Match(parsed)
		tag = supportedTags[idx]
	}
	return Messages{printer: message.NewPrinter(tag)}
}

// Elapsed renders how long a session has been open: whole hours from one hour up, otherwise whole minutes.
func (m Messages) Elapsed(d time.Duration) string {
	p := m.printer
	if p == nil {
		p = message.NewPrinter(language.Spanish)
	}
	if d >= time.Hour {
		h := int(d / time.Hour)
		if h == 1 {
			return p.Sprintf(keyOpenHour, h)
		}
		return p.Sprintf(keyOpenHours, h)
	}
	mins := int(d / time.Minute)
	if mins == 1 {
		return p.Sprintf(keyOpenMinute, mins)
	}
	return p.Sprintf(keyOpenMinutes, mins)
}

// AbandonedPrompt asks the worker to recover or discard a session open for d.
func (m Messages) AbandonedPrompt(d time.Duration) string {
	p := m.printer
	if p == nil {
		p = message.NewPrinter(language.Spanish)
	}
	return p.Sprintf(keyPrompt, m.Elapsed(d))
}
