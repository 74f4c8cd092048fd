package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tubedigest/model"
	"tubedigest/notify"
	"tubedigest/process"
	"tubedigest/resolve"
	"tubedigest/storage"
)

const (
	replyAskPassword   = "Hola. Para usar el bot, envía primero la contraseña."
	replyWrongPassword = "Contraseña incorrecta. Inténtalo de nuevo."
	replyWelcome       = "Bienvenido. Envíame un enlace de YouTube y te devuelvo un resumen."
	replyNotAVideo     = "Eso no parece un enlace o ID de video de YouTube."
	replyProcessing    = "Procesando el video, esto puede tardar un poco..."
	replyInFlight      = "Ese video ya se está procesando. Vuelve a intentarlo en unos minutos."
	replyFailed        = "No se pudo generar el resumen. Inténtalo de nuevo más tarde."
)

type Messenger interface {
	SendMessage(ctx context.Context, userID model.UserID, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]notify.Update, error)
}

// Listener handles direct messages: password-gated registration and
// on-demand video submissions.
type Listener struct {
	messenger Messenger
	users     storage.ConfigStore
	pipeline  Pipeline
	password  string
	logger    *slog.Logger

	pendingAuth map[model.UserID]bool
}

func NewListener(messenger Messenger, users storage.ConfigStore, pipeline Pipeline, password string, logger *slog.Logger) *Listener {
	return &Listener{
		messenger:   messenger,
		users:       users,
		pipeline:    pipeline,
		password:    password,
		logger:      logger,
		pendingAuth: map[model.UserID]bool{},
	}
}

// Run long-polls for updates until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("listener started")

	var offset int64
	for {
		if ctx.Err() != nil {
			l.logger.Info("listener stopped")
			return nil
		}

		updates, err := l.messenger.GetUpdates(ctx, offset, 30)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("listener stopped")
				return nil
			}
			l.logger.Error("poll for updates failed", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			l.handleUpdate(ctx, update)
		}
	}
}

func (l *Listener) handleUpdate(ctx context.Context, update notify.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	userID := model.UserID(strconv.FormatInt(update.Message.Chat.ID, 10))
	text := update.Message.Text

	user, err := l.users.User(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		l.handlePassword(ctx, userID, update.Message.Chat.Username, text)
		return
	case err != nil:
		l.logger.Error("user lookup failed", "user", userID, "error", err)
		return
	case !user.Active:
		return
	}

	l.handleSubmission(ctx, userID, text)
}

func (l *Listener) handlePassword(ctx context.Context, userID model.UserID, username, text string) {
	if !l.pendingAuth[userID] {
		l.pendingAuth[userID] = true
		l.reply(ctx, userID, replyAskPassword)
		return
	}

	if text != l.password {
		l.reply(ctx, userID, replyWrongPassword)
		return
	}

	err := l.users.SaveUser(ctx, model.User{
		UserID:   userID,
		Username: username,
		Active:   true,
	})
	if err != nil {
		l.logger.Error("could not register user", "user", userID, "error", err)
		return
	}
	delete(l.pendingAuth, userID)
	l.logger.Info("registered user", "user", userID, "username", username)
	l.reply(ctx, userID, replyWelcome)
}

func (l *Listener) handleSubmission(ctx context.Context, userID model.UserID, text string) {
	id, err := resolve.VideoID(text)
	if err != nil {
		l.reply(ctx, userID, replyNotAVideo)
		return
	}

	l.reply(ctx, userID, replyProcessing)

	result, err := l.pipeline.Process(ctx, id, "", time.Now().UTC(), "")
	switch {
	case errors.Is(err, process.ErrInFlight):
		l.reply(ctx, userID, replyInFlight)
		return
	case err != nil:
		l.reply(ctx, userID, replyFailed)
		return
	}

	l.reply(ctx, userID, submissionReply(result))
}

// submissionReply formats the summary for the submitting user. Stored
// summaries come back without a title, so those replies skip it.
func submissionReply(result *process.Result) string {
	if result.Cached || result.Title == "" {
		return fmt.Sprintf("%s\n\n%s", result.Summary, result.VideoID.WatchURL())
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", result.Title, result.Summary, result.VideoID.WatchURL())
}

func (l *Listener) reply(ctx context.Context, userID model.UserID, text string) {
	if err := l.messenger.SendMessage(ctx, userID, text); err != nil {
		l.logger.Error("reply failed", "user", userID, "error", err)
	}
}
