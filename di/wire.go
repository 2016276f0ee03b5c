//go:build wireinject
// +build wireinject

package di

import (
	"stay/config"
	"stay/infras/jwt"
	"stay/infras/kafka"
	"stay/infras/otel"
	"stay/infras/postgres"
	"stay/infras/redis"
	"stay/infras/s3"
	"stay/permissions"
	"stay/shared/cache"
	"stay/transport/http"
	"stay/transport/http/middleware"
	"stay/transport/http/router"

	"github.com/google/wire"

	bookingEvent "stay/internal/domains/booking/event"
	bookingRepository "stay/internal/domains/booking/repository"
	bookingService "stay/internal/domains/booking/service"
	roomRepository "stay/internal/domains/room/repository"
	roomService "stay/internal/domains/room/service"
	userRepository "stay/internal/domains/user/repository"
	userService "stay/internal/domains/user/service"

	authService "stay/internal/domains/auth/service"

	authHandler "stay/internal/handlers/auth"
	bookingHandler "stay/internal/handlers/booking"
	roomHandler "stay/internal/handlers/room"
	userHandler "stay/internal/handlers/user"
)

var configurations = wire.NewSet(
	config.Get,
	permissions.Get,
)

var infrastructures = wire.NewSet(
	postgres.New,
	otel.New,
	redis.New,
	jwt.New,
	s3.New,
	kafka.New,
)

var middlewares = wire.NewSet(
	middleware.NewAppMiddleware,
	middleware.NewAuthRoleMiddleware,
)

var sharedHelpers = wire.NewSet(
	cache.NewRedisCache,
)

var authDomain = wire.NewSet(
	authService.New,
)

var userDomain = wire.NewSet(
	userRepository.New,
	userService.New,
)

var roomDomain = wire.NewSet(
	roomRepository.New,
	roomService.New,
)

var bookingDomain = wire.NewSet(
	bookingRepository.New,
	bookingEvent.NewPublisher,
	bookingService.New,
)

var domains = wire.NewSet(
	authDomain,
	userDomain,
	roomDomain,
	bookingDomain,
)

var routing = wire.NewSet(
	wire.Struct(new(router.DomainHandlers), "*"),
	authHandler.New,
	userHandler.New,
	roomHandler.New,
	bookingHandler.New,
	router.New,
)

func InitializeService() *http.HTTP {
	wire.Build(
		configurations,
		infrastructures,
		middlewares,
		sharedHelpers,
		domains,
		routing,
		http.New,
	)

	return &http.HTTP{}
}
