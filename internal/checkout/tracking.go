package checkout

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

// Stage — шаг на странице отслеживания заказа.
type Stage struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
	Done        bool      `json:"done"`
}

// Tracking — состояние заказа для страницы трекинга.
type Tracking struct {
	Order            domain.Order `json:"order"`
	Stages           []Stage      `json:"stages"`
	ExpectedShipping time.Time    `json:"expectedShipping"`
}

var stageTitles = map[string]string{
	string(domain.OrderStatusConfirmed):  "Order Confirmed",
	string(domain.OrderStatusProcessing): "Processing",
	string(domain.OrderStatusShipping):   "Shipping",
}

// TrackOrder возвращает заказ, пройденные шаги и ожидаемую дату отправки.
func (s *Service) TrackOrder(orderID string) (Tracking, error) {
	if orderID == "" {
		return Tracking{}, domain.ErrOrderIDRequired
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return Tracking{}, err
	}

	var events []domain.TimelineEvent
	if s.timeline != nil {
		events, err = s.timeline.List(orderID)
		if err != nil {
			return Tracking{}, fmt.Errorf("load timeline: %w", err)
		}
	}

	expected := order.PlacedAt.Add(ShippingLeadTime)
	tracking := Tracking{
		Order:            order,
		Stages:           make([]Stage, 0, len(events)+1),
		ExpectedShipping: expected,
	}

	shipped := false
	for _, event := range events {
		name := stageTitles[event.Type]
		if name == "" {
			name = event.Type
		}
		if event.Type == string(domain.OrderStatusShipping) {
			shipped = true
		}
		tracking.Stages = append(tracking.Stages, Stage{
			Name:        name,
			Description: event.Reason,
			At:          event.Occurred,
			Done:        true,
		})
	}

	if !shipped {
		tracking.Stages = append(tracking.Stages, Stage{
			Name:        stageTitles[string(domain.OrderStatusShipping)],
			Description: "Your package will be handed to our delivery partner.",
			At:          expected,
		})
	}

	return tracking, nil
}
