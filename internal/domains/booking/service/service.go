package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay/config"
	"stay/infras/otel"
	"stay/internal/domains/booking/event"
	"stay/internal/domains/booking/model"
	"stay/internal/domains/booking/model/dto"
	"stay/internal/domains/booking/repository"
	"stay/internal/domains/room/inventory"
	roomModel "stay/internal/domains/room/model"
	roomRepo "stay/internal/domains/room/repository"
	"stay/shared"
	"stay/shared/cache"
	"stay/shared/constant"
	gDto "stay/shared/dto"
	"stay/shared/failure"
	"stay/shared/timezone"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const (
	cacheGetBooking    = "booking:get"
	cacheGetAllBooking = "booking:gets"
	cacheCountBooking  = "booking:count"
)

type Booking interface {
	Create(ctx context.Context, req dto.CreateBookingRequest) (dto.BookingResponse, error)
	GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (dto.GetBookingsResponse, error)
	GetMy(ctx context.Context, req gDto.QueryParams) (dto.GetBookingsResponse, error)
	Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (int, error)
	Get(ctx context.Context, id string) (dto.BookingResponse, error)
	Cancel(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, req dto.UpdateStatusRequest, id string) error
}

type serviceImpl struct {
	repo     repository.Booking
	roomRepo roomRepo.Room
	events   event.Publisher
	cfg      *config.Config
	cache    cache.RedisCache
	otel     otel.Otel
}

func New(repo repository.Booking, roomRepo roomRepo.Room, events event.Publisher, cfg *config.Config, cache cache.RedisCache, otel otel.Otel) Booking {
	return &serviceImpl{
		repo:     repo,
		roomRepo: roomRepo,
		events:   events,
		cfg:      cfg,
		cache:    cache,
		otel:     otel,
	}
}

// Create books a room for the half-open stay [check_in, check_out). The
// availability pre-check gives callers a precise first-unavailable date,
// but the claim that actually counts happens inside the transaction, so a
// concurrent booking racing for the last unit can never oversell.
func (s *serviceImpl) Create(ctx context.Context, req dto.CreateBookingRequest) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Create")
	defer scope.End()
	defer scope.TraceIfError(err)

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	checkIn, checkOut, err := req.ParseDates()
	if err != nil {
		return res, failure.BadRequestFromString(err.Error()) // nolint:wrapcheck
	}

	if !checkOut.After(checkIn) {
		return res, failure.BadRequestFromString("check-out date must be after check-in date") // nolint:wrapcheck
	}

	now := timezone.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if checkIn.Before(today) {
		return res, failure.BadRequestFromString("check-in date must not be in the past") // nolint:wrapcheck
	}

	room, err := s.roomRepo.Get(ctx, shared.FilterByID(req.RoomID, roomModel.FieldID, roomModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get room")

		return res, fmt.Errorf("failed to get room: %w", err)
	}

	if room.ID == constant.Empty || !room.Active {
		return res, failure.NotFound("room not found") // nolint:wrapcheck
	}

	if req.Persons > room.Capacity {
		return res, failure.BadRequestFromString(fmt.Sprintf("room holds at most %d persons", room.Capacity)) // nolint:wrapcheck
	}

	overrides, err := s.roomRepo.GetOverrides(ctx, room.ID, checkIn, checkOut)
	if err != nil {
		log.Error().Err(err).Msg("failed to get availability overrides")

		return res, fmt.Errorf("failed to get availability overrides: %w", err)
	}

	if firstUnavailable, ok := inventory.CheckRange(room.TotalRooms, overrides, checkIn, checkOut); !ok {
		return res, failure.BadRequestFromString("room unavailable on " + firstUnavailable) // nolint:wrapcheck
	}

	booking := req.ToModel(user, room.Price, checkIn, checkOut)

	err = s.roomRepo.WithTx(ctx, func(sqltx *sqlx.Tx) error {
		conflictDate, err := s.roomRepo.ApplyStayTx(ctx, sqltx, room.ID, room.TotalRooms, inventory.StayDates(checkIn, checkOut))
		if err != nil {
			if errors.Is(err, roomRepo.ErrNoAvailability) {
				return failure.BadRequestFromString("room unavailable on " + conflictDate) // nolint:wrapcheck
			}

			return err
		}

		return s.repo.InsertTx(ctx, sqltx, booking)
	})
	if err != nil {
		return res, err
	}

	booking.RoomName = room.Name
	res.FromModel(booking)

	s.events.BookingCreated(ctx, booking)
	s.invalidateBookingCaches(ctx, booking.ID)

	return res, nil
}

func (s *serviceImpl) GetAll(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res dto.GetBookingsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetAll")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(cacheGetAllBooking, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for bookings")

		return res, nil
	}

	total, err := s.Count(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count bookings")

		return res, fmt.Errorf("failed to count bookings: %w", err)
	}

	models, err := s.repo.GetAll(ctx, req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to get bookings")

		return res, fmt.Errorf("failed to get bookings: %w", err)
	}

	res.FromModels(models, total, req.Limit)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save bookings to cache")
		}
	}()

	return res, nil
}

// GetMy lists only the caller's own bookings.
func (s *serviceImpl) GetMy(ctx context.Context, req gDto.QueryParams) (dto.GetBookingsResponse, error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".GetMy")
	defer scope.End()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	return s.GetAll(ctx, req, shared.FilterByID(user, model.FieldUserID, model.TableName))
}

func (s *serviceImpl) Count(ctx context.Context, req gDto.QueryParams, filter gDto.FilterGroup) (res int, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Count")
	defer scope.End()
	defer scope.TraceIfError(err)

	cacheKey := shared.BuildCacheKeyWithQuery(cacheCountBooking, req, filter)

	err = s.cache.Get(ctx, cacheKey, &res)
	if err == nil {
		log.Info().Str("cacheKey", cacheKey).Msg("cache hit for booking count")

		return res, nil
	}

	res, err = s.repo.Count(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count bookings")

		return res, fmt.Errorf("failed to count bookings: %w", err)
	}

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save booking count to cache")
		}
	}()

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Get")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.getOwned(ctx, id)
	if err != nil {
		return res, err
	}

	res.FromModel(booking)

	return res, nil
}

// Cancel releases the booking's claimed inventory exactly once. The status
// flip and the per-date release share one transaction, so a crash between
// them cannot strand phantom claims or double-release.
func (s *serviceImpl) Cancel(ctx context.Context, id string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Cancel")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.getOwned(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status == constant.BookingStatusCancelled {
		return failure.Conflict("booking is already cancelled") // nolint:wrapcheck
	}

	previousStatus := booking.Status

	if err = s.transitionStatus(ctx, booking, constant.BookingStatusCancelled); err != nil {
		return err
	}

	booking.Status = constant.BookingStatusCancelled

	s.events.BookingCancelled(ctx, booking, previousStatus)
	s.invalidateBookingCaches(ctx, booking.ID)

	return nil
}

// UpdateStatus moves a booking between pending, confirmed and cancelled.
// Every transition into cancelled releases inventory; every transition out
// of cancelled re-claims it and can fail with the first unavailable date if
// the room filled up in the meantime. Moves between pending and confirmed
// never touch inventory.
func (s *serviceImpl) UpdateStatus(ctx context.Context, req dto.UpdateStatusRequest, id string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".UpdateStatus")
	defer scope.End()
	defer scope.TraceIfError(err)

	booking, err := s.getOwned(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status == req.Status {
		return failure.Conflict("booking is already " + req.Status) // nolint:wrapcheck
	}

	previousStatus := booking.Status

	if err = s.transitionStatus(ctx, booking, req.Status); err != nil {
		return err
	}

	booking.Status = req.Status

	s.events.BookingStatusChanged(ctx, booking, previousStatus)
	s.invalidateBookingCaches(ctx, booking.ID)

	return nil
}

func (s *serviceImpl) transitionStatus(ctx context.Context, booking model.Booking, newStatus string) error {
	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	room, err := s.roomRepo.Get(ctx, shared.FilterByID(booking.RoomID, roomModel.FieldID, roomModel.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get room")

		return fmt.Errorf("failed to get room: %w", err)
	}

	if room.ID == constant.Empty {
		return failure.NotFound("room not found") // nolint:wrapcheck
	}

	dates := inventory.StayDates(booking.CheckIn, booking.CheckOut)

	intoCancelled := newStatus == constant.BookingStatusCancelled
	outOfCancelled := booking.Status == constant.BookingStatusCancelled

	if outOfCancelled {
		overrides, err := s.roomRepo.GetOverrides(ctx, room.ID, booking.CheckIn, booking.CheckOut)
		if err != nil {
			log.Error().Err(err).Msg("failed to get availability overrides")

			return fmt.Errorf("failed to get availability overrides: %w", err)
		}

		if firstUnavailable, ok := inventory.CheckRange(room.TotalRooms, overrides, booking.CheckIn, booking.CheckOut); !ok {
			return failure.BadRequestFromString("room unavailable on " + firstUnavailable) // nolint:wrapcheck
		}
	}

	// The guarded status flip runs first: it only succeeds while the row
	// still holds the status this transition was decided on, so a racing
	// cancel or reinstate cannot release or claim the same dates twice.
	return s.roomRepo.WithTx(ctx, func(sqltx *sqlx.Tx) error {
		updated, err := s.repo.UpdateStatusTx(ctx, sqltx, booking.ID, booking.Status, newStatus, user)
		if err != nil {
			return err
		}

		if !updated {
			return failure.Conflict("booking is no longer " + booking.Status) // nolint:wrapcheck
		}

		switch {
		case intoCancelled:
			return s.roomRepo.ReleaseStayTx(ctx, sqltx, room.ID, room.TotalRooms, dates)
		case outOfCancelled:
			conflictDate, err := s.roomRepo.ApplyStayTx(ctx, sqltx, room.ID, room.TotalRooms, dates)
			if err != nil {
				if errors.Is(err, roomRepo.ErrNoAvailability) {
					return failure.BadRequestFromString("room unavailable on " + conflictDate) // nolint:wrapcheck
				}

				return err
			}
		}

		return nil
	})
}

// getOwned loads a booking and enforces ownership: admins see everything,
// everyone else only their own bookings. A booking owned by someone else
// reads as absent so callers cannot probe for foreign booking IDs.
func (s *serviceImpl) getOwned(ctx context.Context, id string) (model.Booking, error) {
	booking, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Msg("failed to get booking")

		return booking, fmt.Errorf("failed to get booking: %w", err)
	}

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	role, _ := ctx.Value(constant.ContextKeyUserRole).(string)

	if booking.ID == constant.Empty || (role != constant.RoleAdmin && booking.UserID != user) {
		return booking, failure.NotFound("booking not found") // nolint:wrapcheck
	}

	return booking, nil
}

func (s *serviceImpl) invalidateBookingCaches(ctx context.Context, id string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetBooking, id)); err != nil {
			log.Error().Err(err).Msg("failed to delete booking from cache")
		}

		shared.InvalidateCaches(c, s.cache, cacheGetAllBooking)
		shared.InvalidateCaches(c, s.cache, cacheCountBooking)
	}()
}
