package model

import (
	"stay/shared/model"
	"time"
)

const (
	TableName  = "room_bookings"
	EntityName = "booking"

	FieldID         = "id"
	FieldRoomID     = "room_id"
	FieldUserID     = "user_id"
	FieldPhone      = "phone"
	FieldPersons    = "persons"
	FieldCheckIn    = "check_in"
	FieldCheckOut   = "check_out"
	FieldTotalPrice = "total_price"
	FieldStatus     = "status"
)

type Booking struct {
	ID         string    `db:"id"`
	RoomID     string    `db:"room_id"`
	UserID     string    `db:"user_id"`
	Phone      string    `db:"phone"`
	Persons    int       `db:"persons"`
	CheckIn    time.Time `db:"check_in"`
	CheckOut   time.Time `db:"check_out"`
	TotalPrice int       `db:"total_price"`
	Status     string    `db:"status"`
	RoomName   string    `db:"room_name" table:"rooms" column:"name"`
	model.Metadata
}

func (Booking) GetJoinQuery() string {
	return "LEFT JOIN rooms ON rooms.id = room_bookings.room_id"
}
