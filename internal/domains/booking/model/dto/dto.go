package dto

import (
	"fmt"
	"time"

	"stay/internal/domains/booking/model"
	"stay/internal/domains/room/inventory"
	"stay/shared"
	"stay/shared/constant"
	gDto "stay/shared/dto"
	gModel "stay/shared/model"
	"stay/shared/timezone"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	RoomID   string `json:"room_id"   validate:"required,uuid"`
	Persons  int    `json:"persons"   validate:"required,min=1"`
	Phone    string `json:"phone"     validate:"required,max=20"`
	CheckIn  string `json:"check_in"  validate:"required,calendardate"`
	CheckOut string `json:"check_out" validate:"required,calendardate"`
}

// ParseDates returns the stay boundaries as day-granular times.
func (c *CreateBookingRequest) ParseDates() (checkIn, checkOut time.Time, err error) {
	checkIn, err = time.Parse(constant.CalendarDateFormat, c.CheckIn)
	if err != nil {
		return checkIn, checkOut, fmt.Errorf("invalid check-in date: %w", err)
	}

	checkOut, err = time.Parse(constant.CalendarDateFormat, c.CheckOut)
	if err != nil {
		return checkIn, checkOut, fmt.Errorf("invalid check-out date: %w", err)
	}

	return checkIn, checkOut, nil
}

// ToModel freezes the total price at creation time: persons times the
// room's current nightly price times the number of nights. Later price
// changes never touch existing bookings.
func (c *CreateBookingRequest) ToModel(user string, price int, checkIn, checkOut time.Time) model.Booking {
	return model.Booking{
		ID:         uuid.NewString(),
		RoomID:     c.RoomID,
		UserID:     user,
		Phone:      c.Phone,
		Persons:    c.Persons,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TotalPrice: inventory.TotalPrice(c.Persons, price, checkIn, checkOut),
		Status:     constant.BookingStatusPending,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed cancelled"`
}

type BookingResponse struct {
	ID         string `json:"id"`
	RoomID     string `json:"room_id"`
	RoomName   string `json:"room_name"`
	UserID     string `json:"user_id"`
	Phone      string `json:"phone"`
	Persons    int    `json:"persons"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Nights     int    `json:"nights"`
	TotalPrice int    `json:"total_price"`
	Status     string `json:"status"`
	gDto.Metadata
}

func (b *BookingResponse) FromModel(model model.Booking) {
	b.ID = model.ID
	b.RoomID = model.RoomID
	b.RoomName = model.RoomName
	b.UserID = model.UserID
	b.Phone = model.Phone
	b.Persons = model.Persons
	b.CheckIn = inventory.DateKey(model.CheckIn)
	b.CheckOut = inventory.DateKey(model.CheckOut)
	b.Nights = inventory.Nights(model.CheckIn, model.CheckOut)
	b.TotalPrice = model.TotalPrice
	b.Status = model.Status
	b.Metadata.FromModel(model.Metadata)
}

type GetBookingsResponse struct {
	Bookings  []BookingResponse `json:"bookings"`
	TotalPage int               `json:"total_page"`
	TotalData int               `json:"total_data"`
}

func (g *GetBookingsResponse) FromModels(models []model.Booking, totalData, limit int) {
	g.TotalData = totalData
	g.TotalPage = shared.CalculateTotalPage(totalData, limit)

	g.Bookings = make([]BookingResponse, len(models))
	for i, mod := range models {
		g.Bookings[i].FromModel(mod)
	}
}
