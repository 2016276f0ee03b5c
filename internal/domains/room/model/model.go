package model

import (
	"stay/shared/model"
	"time"
)

const (
	TableName  = "rooms"
	EntityName = "room"

	FieldID         = "id"
	FieldName       = "name"
	FieldFacilities = "facilities"
	FieldPrice      = "price"
	FieldCapacity   = "capacity"
	FieldTotalRooms = "total_rooms"
	FieldImage      = "image"
	FieldActive     = "active"
)

const (
	AvailabilityTableName  = "room_availability"
	AvailabilityEntityName = "room_availability"

	FieldAvailabilityRoomID = "room_id"
	FieldAvailabilityDate   = "date"
	FieldAvailableRooms     = "available_rooms"
)

type Room struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Facilities string `db:"facilities"`
	Price      int    `db:"price"`
	Capacity   int    `db:"capacity"`
	TotalRooms int    `db:"total_rooms"`
	Image      string `db:"image"`
	Active     bool   `db:"active"`
	model.Metadata
}

// Availability is a sparse override row. A date with no row means the
// room still has TotalRooms units free on that date.
type Availability struct {
	RoomID         string    `db:"room_id"`
	Date           time.Time `db:"date"`
	AvailableRooms int       `db:"available_rooms"`
}
