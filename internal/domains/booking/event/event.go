package event

//go:generate go run go.uber.org/mock/mockgen -source=./event.go -destination=./mocks/event_mock.go -package=mocks

import (
	"context"

	"stay/config"
	"stay/infras/kafka"
	"stay/infras/otel"
	"stay/internal/domains/booking/model"
	"stay/internal/domains/room/inventory"
	"stay/shared/constant"
	"stay/shared/timezone"

	"github.com/rs/zerolog/log"
)

const (
	TypeBookingCreated       = "booking.created"
	TypeBookingCancelled     = "booking.cancelled"
	TypeBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is the wire payload published to the booking lifecycle topic.
type BookingEvent struct {
	Type           string `json:"type"`
	BookingID      string `json:"booking_id"`
	RoomID         string `json:"room_id"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	CheckIn        string `json:"check_in"`
	CheckOut       string `json:"check_out"`
	TotalPrice     int    `json:"total_price"`
	OccurredAt     string `json:"occurred_at"`
}

type Publisher interface {
	BookingCreated(ctx context.Context, booking model.Booking)
	BookingCancelled(ctx context.Context, booking model.Booking, previousStatus string)
	BookingStatusChanged(ctx context.Context, booking model.Booking, previousStatus string)
}

type publisherImpl struct {
	client kafka.Client
	cfg    *config.Config
	otel   otel.Otel
}

func NewPublisher(client kafka.Client, cfg *config.Config, otel otel.Otel) Publisher {
	return &publisherImpl{
		client: client,
		cfg:    cfg,
		otel:   otel,
	}
}

func (p *publisherImpl) BookingCreated(ctx context.Context, booking model.Booking) {
	p.publish(ctx, TypeBookingCreated, booking, constant.Empty)
}

func (p *publisherImpl) BookingCancelled(ctx context.Context, booking model.Booking, previousStatus string) {
	p.publish(ctx, TypeBookingCancelled, booking, previousStatus)
}

func (p *publisherImpl) BookingStatusChanged(ctx context.Context, booking model.Booking, previousStatus string) {
	p.publish(ctx, TypeBookingStatusChanged, booking, previousStatus)
}

// publish sends fire-and-forget: a broker outage must never fail the
// booking operation that triggered the event.
func (p *publisherImpl) publish(ctx context.Context, eventType string, booking model.Booking, previousStatus string) {
	_, scope := p.otel.NewScope(ctx, constant.OtelEventScopeName, constant.OtelEventScopeName+".publish")
	defer scope.End()

	payload := BookingEvent{
		Type:           eventType,
		BookingID:      booking.ID,
		RoomID:         booking.RoomID,
		UserID:         booking.UserID,
		Status:         booking.Status,
		PreviousStatus: previousStatus,
		CheckIn:        inventory.DateKey(booking.CheckIn),
		CheckOut:       inventory.DateKey(booking.CheckOut),
		TotalPrice:     booking.TotalPrice,
		OccurredAt:     timezone.Format(timezone.Now(), constant.DateFormat),
	}

	go func() {
		c := context.WithoutCancel(ctx)

		err := p.client.SendMessages(c, p.cfg.Kafka.BookingTopic, kafka.Message{
			Key:   booking.ID,
			Value: payload,
		})
		if err != nil {
			log.Error().Err(err).Str("type", eventType).Str("bookingID", booking.ID).Msg("failed to publish booking event")
		}
	}()
}
