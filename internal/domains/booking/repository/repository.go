package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"fmt"
	"stay/infras/otel"
	"stay/infras/postgres"
	"stay/internal/domains/booking/model"
	"stay/shared/constant"
	gDto "stay/shared/dto"
	"stay/shared/logger"
	gRepo "stay/shared/repository"
	"stay/shared/timezone"

	"github.com/jmoiron/sqlx"
)

// updateStatusQuery is guarded on the previous status so two transactions
// racing for the same transition cannot both win. The row lock it takes
// also serializes the inventory mutation that follows it in the same
// transaction.
const updateStatusQuery = `
	UPDATE room_bookings
	SET status = :status, modified_at = :modified_at, modified_by = :modified_by
	WHERE id = :id AND status = :previous_status`

type Booking interface {
	Insert(ctx context.Context, model model.Booking) error
	InsertTx(ctx context.Context, sqltx *sqlx.Tx, model model.Booking) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Booking, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Booking, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Update(ctx context.Context, req map[string]any, filter gDto.FilterGroup) error
	UpdateTx(ctx context.Context, sqltx *sqlx.Tx, req map[string]any, filter gDto.FilterGroup) error
	UpdateStatusTx(ctx context.Context, sqltx *sqlx.Tx, id, previousStatus, newStatus, user string) (updated bool, err error)
	Delete(ctx context.Context, filter gDto.FilterGroup) error
}

type repositoryImpl struct {
	gRepo.Repository[model.Booking]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Booking {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Booking](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

// UpdateStatusTx flips the booking status inside the given transaction,
// but only when the row still holds previousStatus. A false result means
// another transaction moved the booking first and the caller must abort.
func (repo *repositoryImpl) UpdateStatusTx(ctx context.Context, sqltx *sqlx.Tx, id, previousStatus, newStatus, user string) (updated bool, err error) {
	ctx, scope := repo.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".booking.UpdateStatusTx")
	defer scope.End()

	result, err := sqltx.NamedExecContext(ctx, updateStatusQuery, map[string]any{
		"id":              id,
		"previous_status": previousStatus,
		"status":          newStatus,
		"modified_at":     timezone.Now(),
		"modified_by":     user,
	})
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		logger.ErrorWithStack(err)
		scope.TraceError(err)

		return false, fmt.Errorf("failed to read status update result: %w", err)
	}

	return affected > 0, nil
}
