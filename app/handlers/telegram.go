package handlers

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/coresuz/tangabot/app/broadcast"
	"github.com/coresuz/tangabot/app/wizard"
	"github.com/coresuz/tangabot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// BotRef holds the bot instance, which only exists once the runtime is
// up. Adapters constructed earlier resolve it lazily.
type BotRef struct {
	p atomic.Pointer[tele.Bot]
}

// Set stores the running bot.
func (b *BotRef) Set(bot *tele.Bot) {
	b.p.Store(bot)
}

func (b *BotRef) get() (*tele.Bot, error) {
	bot := b.p.Load()
	if bot == nil {
		return nil, errors.New("handlers: bot not started")
	}
	return bot, nil
}

// teleFetcher downloads uploaded files through the bot API.
type teleFetcher struct {
	ref *BotRef
}

// NewFetcher returns an asset fetcher bound to the bot reference.
func NewFetcher(ref *BotRef) *teleFetcher {
	return &teleFetcher{ref: ref}
}

func (f *teleFetcher) Fetch(_ context.Context, fileID string) (io.ReadCloser, error) {
	bot, err := f.ref.get()
	if err != nil {
		return nil, err
	}
	return bot.File(&tele.File{FileID: fileID})
}

// teleSender delivers broadcast messages through the bot API.
type teleSender struct {
	ref *BotRef
}

// NewSender returns a broadcast sender bound to the bot reference.
func NewSender(ref *BotRef) *teleSender {
	return &teleSender{ref: ref}
}

func (s *teleSender) SendText(_ context.Context, recipient int64, text string, btn *broadcast.Button) error {
	bot, err := s.ref.get()
	if err != nil {
		return err
	}
	_, err = bot.Send(&tele.User{ID: recipient}, text, sendOpts(btn))
	return err
}

func (s *teleSender) SendPhoto(_ context.Context, recipient int64, path, caption string, btn *broadcast.Button) error {
	bot, err := s.ref.get()
	if err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromDisk(path), Caption: caption}
	_, err = bot.Send(&tele.User{ID: recipient}, photo, sendOpts(btn))
	return err
}

func sendOpts(btn *broadcast.Button) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if btn != nil {
		opts.ReplyMarkup = keyboard.InlineButtons([]keyboard.InlineBtn{{Text: btn.Text, URL: btn.URL}})
	}
	return opts
}

// wizardMarkup renders the engine's keyboard enum as inline buttons.
func wizardMarkup(k wizard.Keyboard) *tele.ReplyMarkup {
	cancel := keyboard.InlineBtn{Text: "❌ Отмена", Unique: wizard.CBCancel}
	switch k {
	case wizard.KeyboardTarget:
		return keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{{Text: "👥 Всем", Unique: wizard.CBTargetAll}},
			[]keyboard.InlineBtn{
				{Text: "За сутки", Unique: wizard.CBTargetLastDay},
				{Text: "За неделю", Unique: wizard.CBTargetLastWeek},
			},
			[]keyboard.InlineBtn{
				{Text: "За месяц", Unique: wizard.CBTargetLastMonth},
				{Text: "Один пользователь", Unique: wizard.CBTargetSpecific},
			},
			[]keyboard.InlineBtn{cancel},
		)
	case wizard.KeyboardImageChoice:
		return keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{
				{Text: "✅ Да", Unique: wizard.CBImageYes},
				{Text: "Нет", Unique: wizard.CBImageNo},
			},
			[]keyboard.InlineBtn{cancel},
		)
	case wizard.KeyboardButtonChoice:
		return keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{
				{Text: "✅ Да", Unique: wizard.CBButtonYes},
				{Text: "Нет", Unique: wizard.CBButtonNo},
			},
			[]keyboard.InlineBtn{cancel},
		)
	case wizard.KeyboardConfirm:
		return keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{{Text: "🚀 Отправить", Unique: wizard.CBConfirmYes}},
			[]keyboard.InlineBtn{cancel},
		)
	case wizard.KeyboardCancel:
		return keyboard.InlineButtons([]keyboard.InlineBtn{cancel})
	case wizard.KeyboardCancelAdmin:
		return keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "❌ Отмена", Unique: wizard.CBCancelAdmin},
		})
	}
	return nil
}
