package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/models"
)

// Notification is one alert ready for delivery.
type Notification struct {
	GameID    int64
	GameName  string
	Kind      models.EventKind
	Detail    string
	Magnitude float64
	EventTime time.Time
}

// Message is the plain-text form stored with the alert record.
func (n Notification) Message() string {
	return n.GameName + ": " + n.Detail
}

// Notifier delivers notifications to an external channel.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// LogNotifier writes alerts to the structured log only.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Deliver(_ context.Context, n Notification) error {
	slog.Info("Momentum alert", "game_id", n.GameID, "game", n.GameName, "type", n.Kind, "detail", n.Detail, "magnitude", n.Magnitude)
	return nil
}
