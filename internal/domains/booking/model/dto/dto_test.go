package dto_test

import (
	"testing"
	"time"

	"stay/internal/domains/booking/model"
	"stay/internal/domains/booking/model/dto"
	"stay/shared/constant"
	gModel "stay/shared/model"
	"stay/shared/timezone"

	"github.com/stretchr/testify/assert"
)

func TestCreateBookingRequest_ParseDates(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  string
		checkOut string
		wantErr  bool
	}{
		{
			name:     "valid dates",
			checkIn:  "2026-09-10",
			checkOut: "2026-09-12",
		},
		{
			name:     "malformed check-in",
			checkIn:  "10-09-2026",
			checkOut: "2026-09-12",
			wantErr:  true,
		},
		{
			name:     "malformed check-out",
			checkIn:  "2026-09-10",
			checkOut: "september 12",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := dto.CreateBookingRequest{CheckIn: tt.checkIn, CheckOut: tt.checkOut}

			checkIn, checkOut, err := req.ParseDates()

			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.checkIn, checkIn.Format(constant.CalendarDateFormat))
			assert.Equal(t, tt.checkOut, checkOut.Format(constant.CalendarDateFormat))
		})
	}
}

func TestCreateBookingRequest_ToModel(t *testing.T) {
	req := dto.CreateBookingRequest{
		RoomID:   "room-id",
		Persons:  2,
		Phone:    "+6281234567890",
		CheckIn:  "2026-09-10",
		CheckOut: "2026-09-12",
	}

	checkIn, _ := time.Parse(constant.CalendarDateFormat, req.CheckIn)
	checkOut, _ := time.Parse(constant.CalendarDateFormat, req.CheckOut)

	userID := "test-user-id"
	booking := req.ToModel(userID, 100, checkIn, checkOut)

	assert.NotEmpty(t, booking.ID, "expected ID to be generated")
	assert.Equal(t, req.RoomID, booking.RoomID)
	assert.Equal(t, userID, booking.UserID)
	assert.Equal(t, req.Persons, booking.Persons)
	assert.Equal(t, constant.BookingStatusPending, booking.Status)
	assert.Equal(t, userID, booking.CreatedBy)

	// 2 persons x 100 per night x 2 nights
	assert.Equal(t, 400, booking.TotalPrice)
}

func TestBookingResponse_FromModel(t *testing.T) {
	now := timezone.Now()
	checkIn, _ := time.Parse(constant.CalendarDateFormat, "2026-09-10")

	bookingModel := model.Booking{
		ID:         "test-id",
		RoomID:     "room-id",
		RoomName:   "Deluxe",
		UserID:     "test-user",
		Phone:      "+6281234567890",
		Persons:    2,
		CheckIn:    checkIn,
		CheckOut:   checkIn.AddDate(0, 0, 3),
		TotalPrice: 600,
		Status:     constant.BookingStatusConfirmed,
		Metadata: gModel.Metadata{
			CreatedAt:  now,
			ModifiedAt: now,
			CreatedBy:  "test-user",
			ModifiedBy: "test-user",
		},
	}

	var response dto.BookingResponse
	response.FromModel(bookingModel)

	assert.Equal(t, bookingModel.ID, response.ID)
	assert.Equal(t, bookingModel.RoomName, response.RoomName)
	assert.Equal(t, "2026-09-10", response.CheckIn)
	assert.Equal(t, "2026-09-13", response.CheckOut)
	assert.Equal(t, 3, response.Nights)
	assert.Equal(t, bookingModel.TotalPrice, response.TotalPrice)
	assert.Equal(t, bookingModel.Status, response.Status)
}

func TestGetBookingsResponse_FromModels(t *testing.T) {
	checkIn, _ := time.Parse(constant.CalendarDateFormat, "2026-09-10")

	bookings := []model.Booking{
		{ID: "test-id-1", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1)},
		{ID: "test-id-2", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 2)},
	}

	var response dto.GetBookingsResponse
	response.FromModels(bookings, 12, 10)

	assert.Len(t, response.Bookings, 2)
	assert.Equal(t, 12, response.TotalData)
	assert.Equal(t, 2, response.TotalPage)
	assert.Equal(t, "test-id-1", response.Bookings[0].ID)
	assert.Equal(t, 2, response.Bookings[1].Nights)
}
