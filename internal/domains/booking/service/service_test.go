package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"stay/config"
	"stay/infras/otel/mocks"
	eventMocks "stay/internal/domains/booking/event/mocks"
	bookingMocks "stay/internal/domains/booking/mocks"
	"stay/internal/domains/booking/model"
	"stay/internal/domains/booking/model/dto"
	"stay/internal/domains/booking/service"
	"stay/internal/domains/room/inventory"
	roomMocks "stay/internal/domains/room/mocks"
	roomModel "stay/internal/domains/room/model"
	roomRepo "stay/internal/domains/room/repository"
	cacheMocks "stay/shared/cache/mocks"
	"stay/shared/constant"
	gDto "stay/shared/dto"
	"stay/shared/failure"
	gModel "stay/shared/model"
	"stay/shared/timezone"
)

type bookingMockSet struct {
	repo   *bookingMocks.MockBooking
	room   *roomMocks.MockRoom
	events *eventMocks.MockPublisher
	cache  *cacheMocks.MockRedisCache
}

func newBookingService(t *testing.T) (service.Booking, bookingMockSet) {
	t.Helper()

	ctrl := gomock.NewController(t)

	m := bookingMockSet{
		repo:   bookingMocks.NewMockBooking(ctrl),
		room:   roomMocks.NewMockRoom(ctrl),
		events: eventMocks.NewMockPublisher(ctrl),
		cache:  cacheMocks.NewMockRedisCache(ctrl),
	}

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600

	svc := service.New(m.repo, m.room, m.events, cfg, m.cache, mocks.NewOtel())

	return svc, m
}

func userContext(userID, role string) context.Context {
	ctx := context.WithValue(context.Background(), constant.ContextKeyUserID, userID)

	return context.WithValue(ctx, constant.ContextKeyUserRole, role)
}

// runTx makes the mocked transaction helper execute the closure it is
// handed, so the per-date claims and inserts inside it are exercised.
func runTx(room *roomMocks.MockRoom) *gomock.Call {
	return room.EXPECT().
		WithTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(*sqlx.Tx) error) error {
			return fn(nil)
		})
}

func allowCacheInvalidation(m bookingMockSet) {
	m.cache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	m.cache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func futureDate(days int) string {
	return timezone.Now().AddDate(0, 0, days).Format(constant.CalendarDateFormat)
}

func testRoom() roomModel.Room {
	return roomModel.Room{
		ID:         "11111111-1111-1111-1111-111111111111",
		Name:       "Deluxe",
		Price:      100,
		Capacity:   4,
		TotalRooms: 3,
		Active:     true,
	}
}

func TestBookingService_Create(t *testing.T) {
	room := testRoom()

	validReq := dto.CreateBookingRequest{
		RoomID:   room.ID,
		Persons:  2,
		Phone:    "+6281234567890",
		CheckIn:  futureDate(7),
		CheckOut: futureDate(9),
	}

	tests := []struct {
		name      string
		req       dto.CreateBookingRequest
		setupMock func(m bookingMockSet)
		wantErr   bool
		wantCode  int
	}{
		{
			name: "successful booking",
			req:  validReq,
			setupMock: func(m bookingMockSet) {
				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{}, nil)

				runTx(m.room)

				m.room.EXPECT().
					ApplyStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return("", nil)

				m.repo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil)

				m.events.EXPECT().
					BookingCreated(gomock.Any(), gomock.Any())

				allowCacheInvalidation(m)
			},
			wantErr: false,
		},
		{
			name: "check-out not after check-in",
			req: dto.CreateBookingRequest{
				RoomID:   room.ID,
				Persons:  2,
				Phone:    "+6281234567890",
				CheckIn:  futureDate(7),
				CheckOut: futureDate(7),
			},
			setupMock: func(m bookingMockSet) {},
			wantErr:   true,
			wantCode:  http.StatusBadRequest,
		},
		{
			name: "check-in in the past",
			req: dto.CreateBookingRequest{
				RoomID:   room.ID,
				Persons:  2,
				Phone:    "+6281234567890",
				CheckIn:  futureDate(-3),
				CheckOut: futureDate(2),
			},
			setupMock: func(m bookingMockSet) {},
			wantErr:   true,
			wantCode:  http.StatusBadRequest,
		},
		{
			name: "room not found",
			req:  validReq,
			setupMock: func(m bookingMockSet) {
				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(roomModel.Room{}, nil)
			},
			wantErr:  true,
			wantCode: http.StatusNotFound,
		},
		{
			name: "inactive room is not bookable",
			req:  validReq,
			setupMock: func(m bookingMockSet) {
				inactive := testRoom()
				inactive.Active = false

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(inactive, nil)
			},
			wantErr:  true,
			wantCode: http.StatusNotFound,
		},
		{
			name: "persons exceed capacity",
			req: dto.CreateBookingRequest{
				RoomID:   room.ID,
				Persons:  5,
				Phone:    "+6281234567890",
				CheckIn:  futureDate(7),
				CheckOut: futureDate(9),
			},
			setupMock: func(m bookingMockSet) {
				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)
			},
			wantErr:  true,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "sold out date rejected before the transaction",
			req:  validReq,
			setupMock: func(m bookingMockSet) {
				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{futureDate(7): 0}, nil)
			},
			wantErr:  true,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "concurrent claim loses the last unit",
			req:  validReq,
			setupMock: func(m bookingMockSet) {
				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{}, nil)

				runTx(m.room)

				m.room.EXPECT().
					ApplyStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return(futureDate(8), roomRepo.ErrNoAvailability)
			},
			wantErr:  true,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "insert failure rolls the claim back",
			req:  validReq,
			setupMock: func(m bookingMockSet) {
				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{}, nil)

				runTx(m.room)

				m.room.EXPECT().
					ApplyStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return("", nil)

				m.repo.EXPECT().
					InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(errors.New("insert error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newBookingService(t)
			tt.setupMock(m)

			ctx := userContext("test-user-id", constant.RoleUser)
			res, err := svc.Create(ctx, tt.req)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.wantCode != 0 {
					assert.Equal(t, tt.wantCode, failure.GetCode(err))
				}

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.req.RoomID, res.RoomID)
			assert.Equal(t, constant.BookingStatusPending, res.Status)
			assert.Equal(t, 2, res.Nights)
		})
	}
}

func TestBookingService_CreateFreezesTotalPrice(t *testing.T) {
	svc, m := newBookingService(t)

	room := testRoom()

	req := dto.CreateBookingRequest{
		RoomID:   room.ID,
		Persons:  2,
		Phone:    "+6281234567890",
		CheckIn:  futureDate(7),
		CheckOut: futureDate(9),
	}

	m.room.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(room, nil)

	m.room.EXPECT().
		GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
		Return(map[string]int{}, nil)

	runTx(m.room)

	m.room.EXPECT().
		ApplyStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
		Return("", nil)

	var inserted model.Booking

	m.repo.EXPECT().
		InsertTx(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *sqlx.Tx, booking model.Booking) error {
			inserted = booking

			return nil
		})

	m.events.EXPECT().BookingCreated(gomock.Any(), gomock.Any())
	allowCacheInvalidation(m)

	res, err := svc.Create(userContext("test-user-id", constant.RoleUser), req)

	assert.NoError(t, err)

	// 2 persons x 100 per night x 2 nights
	assert.Equal(t, 400, inserted.TotalPrice)
	assert.Equal(t, 400, res.TotalPrice)
}

func testBooking(status string) model.Booking {
	room := testRoom()
	checkIn := timezone.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)

	return model.Booking{
		ID:         "22222222-2222-2222-2222-222222222222",
		RoomID:     room.ID,
		UserID:     "test-user-id",
		Phone:      "+6281234567890",
		Persons:    2,
		CheckIn:    checkIn,
		CheckOut:   checkIn.AddDate(0, 0, 2),
		TotalPrice: 400,
		Status:     status,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  "test-user-id",
			ModifiedBy: "test-user-id",
		},
	}
}

func TestBookingService_Get(t *testing.T) {
	booking := testBooking(constant.BookingStatusPending)

	tests := []struct {
		name     string
		userID   string
		role     string
		wantErr  bool
		wantCode int
	}{
		{
			name:   "owner can read own booking",
			userID: "test-user-id",
			role:   constant.RoleUser,
		},
		{
			name:   "admin can read any booking",
			userID: "someone-else",
			role:   constant.RoleAdmin,
		},
		{
			name:     "bookings of other users read as absent",
			userID:   "someone-else",
			role:     constant.RoleUser,
			wantErr:  true,
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newBookingService(t)

			m.repo.EXPECT().
				Get(gomock.Any(), gomock.Any()).
				Return(booking, nil)

			res, err := svc.Get(userContext(tt.userID, tt.role), booking.ID)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))

				return
			}

			assert.NoError(t, err)
			assert.Equal(t, booking.ID, res.ID)
			assert.Equal(t, inventory.DateKey(booking.CheckIn), res.CheckIn)
		})
	}
}

func TestBookingService_Cancel(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(m bookingMockSet)
		wantErr   bool
		wantCode  int
	}{
		{
			name: "cancelling releases the held rooms",
			setupMock: func(m bookingMockSet) {
				booking := testBooking(constant.BookingStatusConfirmed)
				room := testRoom()

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(booking, nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				runTx(m.room)

				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), booking.ID, constant.BookingStatusConfirmed, constant.BookingStatusCancelled, gomock.Any()).
					Return(true, nil)

				m.room.EXPECT().
					ReleaseStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return(nil).
					Times(1)

				m.events.EXPECT().
					BookingCancelled(gomock.Any(), gomock.Any(), constant.BookingStatusConfirmed)

				allowCacheInvalidation(m)
			},
		},
		{
			name: "concurrent cancel loses the guarded status flip",
			setupMock: func(m bookingMockSet) {
				booking := testBooking(constant.BookingStatusConfirmed)

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(booking, nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testRoom(), nil)

				runTx(m.room)

				// another transaction already moved the booking; no release
				// may happen on this path
				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), booking.ID, constant.BookingStatusConfirmed, constant.BookingStatusCancelled, gomock.Any()).
					Return(false, nil)
			},
			wantErr:  true,
			wantCode: http.StatusConflict,
		},
		{
			name: "cancelling twice never releases twice",
			setupMock: func(m bookingMockSet) {
				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testBooking(constant.BookingStatusCancelled), nil)
			},
			wantErr:  true,
			wantCode: http.StatusConflict,
		},
		{
			name: "booking not found",
			setupMock: func(m bookingMockSet) {
				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(model.Booking{}, nil)
			},
			wantErr:  true,
			wantCode: http.StatusNotFound,
		},
		{
			name: "release failure aborts the cancellation",
			setupMock: func(m bookingMockSet) {
				booking := testBooking(constant.BookingStatusPending)
				room := testRoom()

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(booking, nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				runTx(m.room)

				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), booking.ID, constant.BookingStatusPending, constant.BookingStatusCancelled, gomock.Any()).
					Return(true, nil)

				m.room.EXPECT().
					ReleaseStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return(errors.New("release error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newBookingService(t)
			tt.setupMock(m)

			err := svc.Cancel(userContext("test-user-id", constant.RoleUser), "22222222-2222-2222-2222-222222222222")

			if tt.wantErr {
				assert.Error(t, err)
				if tt.wantCode != 0 {
					assert.Equal(t, tt.wantCode, failure.GetCode(err))
				}

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestBookingService_CancelForeignBooking(t *testing.T) {
	svc, m := newBookingService(t)

	m.repo.EXPECT().
		Get(gomock.Any(), gomock.Any()).
		Return(testBooking(constant.BookingStatusConfirmed), nil)

	err := svc.Cancel(userContext("someone-else", constant.RoleUser), "22222222-2222-2222-2222-222222222222")

	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, failure.GetCode(err))
}

func TestBookingService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name      string
		newStatus string
		setupMock func(m bookingMockSet)
		wantErr   bool
		wantCode  int
	}{
		{
			name:      "pending to confirmed leaves inventory alone",
			newStatus: constant.BookingStatusConfirmed,
			setupMock: func(m bookingMockSet) {
				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testBooking(constant.BookingStatusPending), nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testRoom(), nil)

				runTx(m.room)

				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), gomock.Any(), constant.BookingStatusPending, constant.BookingStatusConfirmed, gomock.Any()).
					Return(true, nil)

				m.events.EXPECT().
					BookingStatusChanged(gomock.Any(), gomock.Any(), constant.BookingStatusPending)

				allowCacheInvalidation(m)
			},
		},
		{
			name:      "admin cancel releases inventory",
			newStatus: constant.BookingStatusCancelled,
			setupMock: func(m bookingMockSet) {
				room := testRoom()

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testBooking(constant.BookingStatusConfirmed), nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				runTx(m.room)

				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), gomock.Any(), constant.BookingStatusConfirmed, constant.BookingStatusCancelled, gomock.Any()).
					Return(true, nil)

				m.room.EXPECT().
					ReleaseStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return(nil).
					Times(1)

				m.events.EXPECT().
					BookingStatusChanged(gomock.Any(), gomock.Any(), constant.BookingStatusConfirmed)

				allowCacheInvalidation(m)
			},
		},
		{
			name:      "reinstating re-claims the rooms",
			newStatus: constant.BookingStatusConfirmed,
			setupMock: func(m bookingMockSet) {
				room := testRoom()

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testBooking(constant.BookingStatusCancelled), nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{}, nil)

				runTx(m.room)

				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), gomock.Any(), constant.BookingStatusCancelled, constant.BookingStatusConfirmed, gomock.Any()).
					Return(true, nil)

				m.room.EXPECT().
					ApplyStayTx(gomock.Any(), gomock.Any(), room.ID, room.TotalRooms, gomock.Any()).
					Return("", nil)

				m.events.EXPECT().
					BookingStatusChanged(gomock.Any(), gomock.Any(), constant.BookingStatusCancelled)

				allowCacheInvalidation(m)
			},
		},
		{
			name:      "concurrent reinstate loses the guarded status flip",
			newStatus: constant.BookingStatusConfirmed,
			setupMock: func(m bookingMockSet) {
				room := testRoom()

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testBooking(constant.BookingStatusCancelled), nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{}, nil)

				runTx(m.room)

				// another transaction already reinstated this booking; no
				// second claim may happen on this path
				m.repo.EXPECT().
					UpdateStatusTx(gomock.Any(), gomock.Any(), gomock.Any(), constant.BookingStatusCancelled, constant.BookingStatusConfirmed, gomock.Any()).
					Return(false, nil)
			},
			wantErr:  true,
			wantCode: http.StatusConflict,
		},
		{
			name:      "reinstating fails when the room filled up",
			newStatus: constant.BookingStatusPending,
			setupMock: func(m bookingMockSet) {
				room := testRoom()
				booking := testBooking(constant.BookingStatusCancelled)

				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(booking, nil)

				m.room.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(room, nil)

				m.room.EXPECT().
					GetOverrides(gomock.Any(), room.ID, gomock.Any(), gomock.Any()).
					Return(map[string]int{inventory.DateKey(booking.CheckIn): 0}, nil)
			},
			wantErr:  true,
			wantCode: http.StatusBadRequest,
		},
		{
			name:      "same status is rejected",
			newStatus: constant.BookingStatusConfirmed,
			setupMock: func(m bookingMockSet) {
				m.repo.EXPECT().
					Get(gomock.Any(), gomock.Any()).
					Return(testBooking(constant.BookingStatusConfirmed), nil)
			},
			wantErr:  true,
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newBookingService(t)
			tt.setupMock(m)

			req := dto.UpdateStatusRequest{Status: tt.newStatus}
			err := svc.UpdateStatus(userContext("admin-user-id", constant.RoleAdmin), req, "22222222-2222-2222-2222-222222222222")

			if tt.wantErr {
				assert.Error(t, err)
				if tt.wantCode != 0 {
					assert.Equal(t, tt.wantCode, failure.GetCode(err))
				}

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestBookingService_GetMy(t *testing.T) {
	svc, m := newBookingService(t)

	m.cache.EXPECT().
		Get(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("cache miss")).
		Times(2)

	m.repo.EXPECT().
		Count(gomock.Any(), gomock.Any()).
		Return(1, nil)

	m.repo.EXPECT().
		GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]model.Booking{testBooking(constant.BookingStatusPending)}, nil)

	m.cache.EXPECT().
		Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		AnyTimes()

	res, err := svc.GetMy(userContext("test-user-id", constant.RoleUser), gDto.QueryParams{Limit: 10, Page: 1})

	assert.NoError(t, err)
	assert.Equal(t, 1, res.TotalData)
	assert.Len(t, res.Bookings, 1)
	assert.Equal(t, "test-user-id", res.Bookings[0].UserID)
}
