package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// UserLookup resolves the recipient for a trigger notification.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// Deliverer sends a rendered email. Satisfied by *Sender.
type Deliverer interface {
	Send(ctx context.Context, to string, rendered *RenderedEmail) error
}

// Notifier implements the dispatch-side notification hook: when a render is
// triggered for an email-destined series, the owning user gets a heads-up
// message.
type Notifier struct {
	users    UserLookup
	renderer *Renderer
	sender   Deliverer
	logger   *slog.Logger
}

// NotifierConfig holds the configuration for creating a Notifier.
type NotifierConfig struct {
	Users    UserLookup
	Renderer *Renderer
	Sender   Deliverer
	Logger   *slog.Logger
}

// NewNotifier creates a new trigger notifier.
func NewNotifier(cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		users:    cfg.Users,
		renderer: cfg.Renderer,
		sender:   cfg.Sender,
		logger:   logger,
	}
}

// NotifyTriggered looks up the user behind the payload, renders the trigger
// notification, and sends it.
func (n *Notifier) NotifyTriggered(ctx context.Context, payload types.RenderPayload) error {
	user, err := n.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("resolving notification recipient: %w", err)
	}
	if user.Email == "" {
		n.logger.WarnContext(ctx, "user has no email address, skipping notification",
			"user_id", user.ID,
		)
		return nil
	}

	rendered, err := n.renderer.RenderTriggered(TriggerData{
		Theme:    payload.Theme,
		Language: payload.Language,
		VideoID:  payload.VideoID,
	})
	if err != nil {
		return err
	}

	if err := n.sender.Send(ctx, user.Email, rendered); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "trigger notification sent",
		"user_id", user.ID,
		"video_id", payload.VideoID,
	)
	return nil
}
