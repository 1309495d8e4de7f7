package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"photo-studio/internal/friendlyerr"
	"photo-studio/internal/imaging"
	"photo-studio/internal/mediagroup"
	"photo-studio/internal/presets"
	"photo-studio/internal/session"
	"photo-studio/internal/studio"
	"photo-studio/internal/telegram"
)

// Messenger is the part of the Telegram client the handler needs.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb telegram.Keyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.Keyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhoto(chatID int64, img imaging.Image, caption string) error
	Download(ctx context.Context, fileID string) (imaging.Image, error)
}

var _ Messenger = (*telegram.Client)(nil)

type Options struct {
	Telegram   Messenger
	Sessions   *session.Store
	Presets    *presets.Library
	Translator *friendlyerr.Translator
	Logger     zerolog.Logger
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	presets    *presets.Library
	translator *friendlyerr.Translator
	logger     zerolog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	translator := opts.Translator
	if translator == nil {
		translator = friendlyerr.New(opts.Logger)
	}

	return &Handler{
		tg:         opts.Telegram,
		sessions:   opts.Sessions,
		presets:    opts.Presets,
		translator: translator,
		logger:     opts.Logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

// SessionKey identifies one user's studio inside one chat.
func SessionKey(chatID, userID int64) string {
	return fmt.Sprintf("tg:%d:%d", chatID, userID)
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, username, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, username, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, username, msg.Text)
	}

	return nil
}

// HandleMediaGroup treats the first photo of an album as the subject and the
// second as the outfit reference.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	fileIDs := []string{group.Primary()}
	if outfit := group.Outfit(); outfit != "" {
		fileIDs = append(fileIDs, outfit)
	}

	images, err := h.downloadAll(ctx, fileIDs)
	if err != nil {
		h.logger.Error().Err(err).Int64("chat_id", group.ChatID).Msg("media group download failed")
		_ = h.tg.SendText(group.ChatID, msgDownloadFailed)
		return
	}

	entry := h.sessions.Get(SessionKey(group.ChatID, group.UserID), group.Username)
	h.tg.SendTyping(group.ChatID)
	if err := entry.Session.SetPrimaryImage(ctx, images[0]); err != nil {
		h.logger.Debug().Err(err).Msg("primary image")
	}
	if len(images) > 1 {
		if err := entry.Session.SetOutfitImage(images[1]); err != nil {
			h.logger.Debug().Err(err).Msg("outfit image")
		}
	}

	if err := h.renderPanel(group.ChatID, group.UserID, false); err != nil {
		h.logger.Error().Err(err).Msg("render panel failed")
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	key := SessionKey(chatID, userID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		h.sessions.Get(key, username)
		if err := h.tg.SendText(chatID, welcomeText); err != nil {
			return err
		}
		return h.renderPanel(chatID, userID, false)
	case "help":
		return h.tg.SendText(chatID, helpText)
	case "mode":
		if args == "" {
			h.setMenu(key, username, menuMode)
			return h.renderPanel(chatID, userID, false)
		}
		mode, ok := parseModeArg(args)
		if !ok {
			return h.tg.SendText(chatID, msgUnknownMode)
		}
		entry := h.sessions.Get(key, username)
		if err := entry.Session.SetMode(mode); err != nil {
			return err
		}
		return h.renderPanel(chatID, userID, false)
	case "reset":
		h.sessions.Reset(key)
		_ = h.tg.SendText(chatID, msgReset)
		return h.renderPanel(chatID, userID, false)
	case "prompt":
		entry := h.sessions.Get(key, username)
		prompt, err := entry.Session.BuildPrompt()
		if err != nil {
			return h.tg.SendText(chatID, "❌ "+err.Error())
		}
		return h.tg.SendText(chatID, prompt)
	case "details":
		entry := h.sessions.Get(key, username)
		if err := entry.Session.SetDetails(args); err != nil {
			return err
		}
		return h.renderPanel(chatID, userID, false)
	case "save":
		if args == "" {
			h.setAwaiting(key, username, awaitPresetName)
			return h.tg.SendText(chatID, msgAskPresetName)
		}
		return h.savePreset(ctx, chatID, userID, username, args)
	case "presets":
		h.setMenu(key, username, menuPresets)
		return h.renderPanel(chatID, userID, false)
	case "generate":
		return h.generate(ctx, chatID, userID, username)
	case "explain":
		return h.explain(ctx, chatID, userID, username)
	case "cancel":
		h.sessions.Update(key, username, func(e *session.Entry) {
			e.Awaiting = ""
			e.Menu = menuMain
		})
		return h.tg.SendText(chatID, msgCancelled)
	default:
		return h.tg.SendText(chatID, msgUnknownCommand)
	}
}

// handleText fills whatever field the panel asked for. In editor mode plain
// text becomes the edit instruction.
func (h *Handler) handleText(ctx context.Context, chatID int64, userID int64, username string, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	key := SessionKey(chatID, userID)
	var awaiting string
	h.sessions.Update(key, username, func(e *session.Entry) {
		awaiting = e.Awaiting
		e.Awaiting = ""
	})
	entry := h.sessions.Get(key, username)
	sess := entry.Session

	var err error
	switch awaiting {
	case awaitDetails:
		err = sess.SetDetails(text)
	case awaitMemorialOutfit:
		err = sess.SetMemorialOutfit(text)
	case awaitMemorialBackground:
		err = sess.SetMemorialBackground(text)
	case awaitPresetName:
		return h.savePreset(ctx, chatID, userID, username, text)
	case awaitEditor:
		err = sess.SetEditorPrompt(text)
	default:
		if sess.Snapshot().Mode != studio.ModeEditor {
			return h.tg.SendText(chatID, msgSendPhotoFirst)
		}
		err = sess.SetEditorPrompt(text)
	}
	if err != nil {
		return h.tg.SendText(chatID, "❌ "+err.Error())
	}
	return h.renderPanel(chatID, userID, false)
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]
	fileID := photo.FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MediaGroupID: msg.MediaGroupID,
			MessageID:    msg.MessageID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	img, err := h.tg.Download(ctx, fileID)
	if err != nil {
		h.logger.Error().Err(err).Msg("photo download failed")
		return h.tg.SendText(chatID, msgDownloadFailed)
	}

	entry := h.sessions.Get(SessionKey(chatID, userID), username)
	sess := entry.Session
	st := sess.Snapshot()

	if st.HasPrimary() && wantsOutfitRole(msg.Caption) {
		if err := sess.SetOutfitImage(img); err != nil {
			return err
		}
		return h.renderPanel(chatID, userID, false)
	}

	h.tg.SendTyping(chatID)
	if err := sess.SetPrimaryImage(ctx, img); err != nil {
		h.logger.Debug().Err(err).Msg("primary image")
	}
	if caption := strings.TrimSpace(msg.Caption); caption != "" && st.Mode == studio.ModeEditor {
		_ = sess.SetEditorPrompt(caption)
	}
	return h.renderPanel(chatID, userID, false)
}

func (h *Handler) downloadAll(ctx context.Context, fileIDs []string) ([]imaging.Image, error) {
	images := make([]imaging.Image, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			img, err := h.tg.Download(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (h *Handler) generate(ctx context.Context, chatID int64, userID int64, username string) error {
	entry := h.sessions.Get(SessionKey(chatID, userID), username)
	sess := entry.Session

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, msgGenerating)

	err := sess.Generate(ctx)
	st := sess.Snapshot()

	var vErr *studio.ValidationError
	switch {
	case err == nil:
		caption := "✅ เสร็จแล้ว"
		if st.Mode != studio.ModeEditor && st.Mode != studio.ModeRepair {
			caption += " (" + string(st.AspectRatio) + ")"
		}
		if err := h.tg.SendPhoto(chatID, st.Result, caption); err != nil {
			return err
		}
	case errors.As(err, &vErr):
		_ = h.tg.SendText(chatID, "❌ "+vErr.Message)
	case errors.Is(err, studio.ErrRateLimited):
		_ = h.tg.SendText(chatID, fmt.Sprintf(msgRateLimited, st.RetryAfter))
	case errors.Is(err, studio.ErrBusy):
		_ = h.tg.SendText(chatID, msgBusy)
	case errors.Is(err, studio.ErrStale):
		return nil
	default:
		h.logger.Warn().Err(err).Str("category", st.ErrorCategory.String()).Msg("generation failed")
		_ = h.tg.SendText(chatID, "❌ "+st.Error)
	}

	return h.renderPanel(chatID, userID, false)
}

func (h *Handler) explain(ctx context.Context, chatID int64, userID int64, username string) error {
	entry := h.sessions.Get(SessionKey(chatID, userID), username)

	h.tg.SendTyping(chatID)
	text, err := entry.Session.Explain(ctx)
	if err != nil {
		var vErr *studio.ValidationError
		if errors.As(err, &vErr) {
			return h.tg.SendText(chatID, "❌ "+vErr.Message)
		}
		return h.tg.SendText(chatID, "❌ "+h.translator.Scoped(friendlyerr.ScopeExplain, err))
	}
	return h.tg.SendText(chatID, "💡 "+text)
}

func (h *Handler) savePreset(ctx context.Context, chatID int64, userID int64, username, name string) error {
	if h.presets == nil {
		return h.tg.SendText(chatID, msgPresetsDisabled)
	}

	entry := h.sessions.Get(SessionKey(chatID, userID), username)
	book := h.presets.Book(presetOwner(userID))
	if _, err := book.Save(ctx, name, entry.Session.Snapshot().Selection); err != nil {
		h.logger.Warn().Err(err).Str("name", name).Msg("preset save failed")
		if errors.Is(err, presets.ErrInvalidName) {
			return h.tg.SendText(chatID, msgAskPresetName)
		}
		return h.tg.SendText(chatID, "❌ "+presets.MsgSaveFailed)
	}
	return h.tg.SendText(chatID, "✅ "+presets.MsgSaved)
}

func presetOwner(userID int64) string {
	return fmt.Sprintf("tg-%d", userID)
}

func (h *Handler) setMenu(key, username, menu string) {
	h.sessions.Update(key, username, func(e *session.Entry) { e.Menu = menu })
}

func (h *Handler) setAwaiting(key, username, field string) {
	h.sessions.Update(key, username, func(e *session.Entry) { e.Awaiting = field })
}
