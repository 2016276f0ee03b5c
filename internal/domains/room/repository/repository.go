package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stay/infras/otel"
	"stay/infras/postgres"
	"stay/internal/domains/room/inventory"
	"stay/internal/domains/room/model"
	"stay/shared/constant"
	gDto "stay/shared/dto"
	"stay/shared/logger"
	gRepo "stay/shared/repository"

	"github.com/jmoiron/sqlx"
)

// ErrNoAvailability marks a stay date with no free unit left. The caller
// gets the offending date alongside it.
var ErrNoAvailability = errors.New("no availability left")

const (
	// applyStayQuery claims one unit for a single date. The insert path
	// covers dates with no override row yet; the conflict path decrements
	// an existing override but only while a unit is still free, so two
	// concurrent claims on the last unit cannot both succeed.
	applyStayQuery = `
		INSERT INTO room_availability (room_id, date, available_rooms)
		VALUES (:room_id, :date, :available_rooms)
		ON CONFLICT (room_id, date) DO UPDATE
		SET available_rooms = room_availability.available_rooms - 1
		WHERE room_availability.available_rooms > 0`

	releaseStayQuery = `
		UPDATE room_availability
		SET available_rooms = available_rooms + 1
		WHERE room_id = :room_id AND date = :date`

	// pruneStayQuery drops override rows that climbed back to the full
	// pool, keeping the availability table sparse.
	pruneStayQuery = `
		DELETE FROM room_availability
		WHERE room_id = :room_id AND date = :date AND available_rooms >= :total_rooms`
)

type Room interface {
	Insert(ctx context.Context, model model.Room) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Room, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Room, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	Delete(ctx context.Context, filter gDto.FilterGroup) error
	WithTx(ctx context.Context, fn func(sqltx *sqlx.Tx) error) error
	GetOverrides(ctx context.Context, roomID string, checkIn, checkOut time.Time) (map[string]int, error)
	ApplyStayTx(ctx context.Context, sqltx *sqlx.Tx, roomID string, totalRooms int, dates []time.Time) (conflictDate string, err error)
	ReleaseStayTx(ctx context.Context, sqltx *sqlx.Tx, roomID string, totalRooms int, dates []time.Time) error
}

type repositoryImpl struct {
	gRepo.Repository[model.Room]
	availability gRepo.Repository[model.Availability]
	db           *postgres.Connection
	otel         otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Room {
	return &repositoryImpl{
		Repository:   gRepo.NewRepository[model.Room](model.EntityName, model.TableName, model.FieldID, db, otel),
		availability: gRepo.NewRepository[model.Availability](model.AvailabilityEntityName, model.AvailabilityTableName, model.FieldAvailabilityRoomID, db, otel),
		db:           db,
		otel:         otel,
	}
}

// WithTx runs fn inside a single write transaction and rolls the whole
// thing back when fn fails, so an inventory claim and its booking row
// always land or vanish together.
func (repo *repositoryImpl) WithTx(ctx context.Context, fn func(sqltx *sqlx.Tx) error) error {
	sqltx, err := repo.db.Write.BeginTxx(ctx, nil)
	if err != nil {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(sqltx); err != nil {
		if rbErr := sqltx.Rollback(); rbErr != nil {
			logger.ErrorWithStack(rbErr)
		}

		return err
	}

	if err := sqltx.Commit(); err != nil {
		logger.ErrorWithStack(err)

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetOverrides loads the sparse override rows covering the half-open stay
// [checkIn, checkOut), keyed by calendar date.
func (repo *repositoryImpl) GetOverrides(ctx context.Context, roomID string, checkIn, checkOut time.Time) (map[string]int, error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".room.GetOverrides")
	defer scope.End()

	dates := inventory.StayDates(checkIn, checkOut)
	if len(dates) == 0 {
		return map[string]int{}, nil
	}

	filter := gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorAnd,
		Filters: []any{
			gDto.Filter{Field: model.FieldAvailabilityRoomID, Value: roomID, Operator: gDto.FilterOperatorEq, Table: model.AvailabilityTableName},
			gDto.Filter{ArgName: "date_from", Field: model.FieldAvailabilityDate, Value: dates[0], Operator: gDto.FilterOperatorGreaterEq, Table: model.AvailabilityTableName},
			gDto.Filter{ArgName: "date_to", Field: model.FieldAvailabilityDate, Value: dates[len(dates)-1], Operator: gDto.FilterOperatorLessEq, Table: model.AvailabilityTableName},
		},
	}

	rows, err := repo.availability.GetAll(ctx, gDto.QueryParams{}, filter)
	if err != nil {
		scope.TraceError(err)

		return nil, fmt.Errorf("failed to get availability overrides: %w", err)
	}

	overrides := make(map[string]int, len(rows))
	for _, row := range rows {
		overrides[inventory.DateKey(row.Date)] = row.AvailableRooms
	}

	return overrides, nil
}

// ApplyStayTx claims one unit per stay date inside the given transaction.
// Dates are claimed in chronological order so the first exhausted date is
// the one reported. A zero-row result means the guarded decrement found no
// free unit; the whole transaction must then be rolled back by the caller.
func (repo *repositoryImpl) ApplyStayTx(ctx context.Context, sqltx *sqlx.Tx, roomID string, totalRooms int, dates []time.Time) (conflictDate string, err error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".room.ApplyStayTx")
	defer scope.End()

	for _, date := range dates {
		result, err := sqltx.NamedExecContext(ctx, applyStayQuery, map[string]any{
			"room_id":         roomID,
			"date":            date,
			"available_rooms": totalRooms - 1,
		})
		if err != nil {
			logger.ErrorWithStack(err)
			scope.TraceError(err)

			return inventory.DateKey(date), fmt.Errorf("failed to claim availability: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			logger.ErrorWithStack(err)
			scope.TraceError(err)

			return inventory.DateKey(date), fmt.Errorf("failed to read claim result: %w", err)
		}

		if affected == 0 {
			return inventory.DateKey(date), ErrNoAvailability
		}
	}

	return constant.Empty, nil
}

// ReleaseStayTx gives one unit back per stay date and prunes override rows
// that reached the full pool again.
func (repo *repositoryImpl) ReleaseStayTx(ctx context.Context, sqltx *sqlx.Tx, roomID string, totalRooms int, dates []time.Time) error {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".room.ReleaseStayTx")
	defer scope.End()

	for _, date := range dates {
		args := map[string]any{
			"room_id":     roomID,
			"date":        date,
			"total_rooms": totalRooms,
		}

		if _, err := sqltx.NamedExecContext(ctx, releaseStayQuery, args); err != nil {
			logger.ErrorWithStack(err)
			scope.TraceError(err)

			return fmt.Errorf("failed to release availability: %w", err)
		}

		if _, err := sqltx.NamedExecContext(ctx, pruneStayQuery, args); err != nil {
			logger.ErrorWithStack(err)
			scope.TraceError(err)

			return fmt.Errorf("failed to prune availability override: %w", err)
		}
	}

	return nil
}
