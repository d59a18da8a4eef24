package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/notify"
)

// NewCartNotificationHandler возвращает обработчик, который пересылает
// cart.notification из topic в sink (обычно notify.Feed) с сессией из события.
// События других типов пропускаются.
func NewCartNotificationHandler(sink domain.Notifier) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		if sink == nil {
			return fmt.Errorf("notification sink is not configured")
		}

		envelope, err := ParseEnvelope(message)
		if err != nil {
			return err
		}
		if envelope.EventType != EventTypeCartNotification {
			return nil
		}

		event, err := ParseCartEvent(message)
		if err != nil {
			return err
		}
		if event.SessionID == "" {
			return fmt.Errorf("cart event %s: %w", envelope.ID, domain.ErrSessionRequired)
		}

		sink.Notify(notify.ContextWithSession(ctx, event.SessionID), domain.Notification{
			Title:       event.Title,
			Description: event.Description,
		})
		return nil
	}
}
