package dto

import (
	"mime/multipart"

	"stay/internal/domains/room/model"
	"stay/shared"
	gDto "stay/shared/dto"
	gModel "stay/shared/model"
	"stay/shared/timezone"

	"github.com/google/uuid"
)

type CreateRoomRequest struct {
	Name       string                `json:"name"        validate:"required,max=100"`
	Facilities string                `json:"facilities"  validate:"omitempty,max=500"`
	Price      int                   `json:"price"       validate:"required,min=1"`
	Capacity   int                   `json:"capacity"    validate:"required,min=1"`
	TotalRooms int                   `json:"total_rooms" validate:"required,min=1"`
	Image      *multipart.FileHeader `json:"image"       validate:"omitempty,mimetypes=image/png image/jpg image/jpeg,maxfilesize=1"`
	ImageFile  multipart.File        `json:"-"`
	Active     *bool                 `json:"active"      validate:"omitempty"`
}

func (c *CreateRoomRequest) ToModel(user string, imageURL string) model.Room {
	active := true
	if c.Active != nil {
		active = *c.Active
	}

	return model.Room{
		ID:         uuid.NewString(),
		Name:       c.Name,
		Facilities: c.Facilities,
		Price:      c.Price,
		Capacity:   c.Capacity,
		TotalRooms: c.TotalRooms,
		Image:      imageURL,
		Active:     active,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type UpdateRoomRequest struct {
	Name       string                `db:"name"        json:"name"        validate:"omitempty,max=100"`
	Facilities string                `db:"facilities"  json:"facilities"  validate:"omitempty,max=500"`
	Price      *int                  `db:"price"       json:"price"       validate:"omitempty,min=1"`
	Capacity   *int                  `db:"capacity"    json:"capacity"    validate:"omitempty,min=1"`
	TotalRooms *int                  `db:"total_rooms" json:"total_rooms" validate:"omitempty,min=1"`
	Image      *multipart.FileHeader `json:"image"     validate:"omitempty,mimetypes=image/png image/jpg image/jpeg,maxfilesize=1"`
	ImageFile  multipart.File        `json:"-"`
	Active     *bool                 `db:"active"      json:"active"      validate:"omitempty"`
}

type RoomResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Facilities string `json:"facilities"`
	Price      int    `json:"price"`
	Capacity   int    `json:"capacity"`
	TotalRooms int    `json:"total_rooms"`
	Image      string `json:"image"`
	Active     bool   `json:"active"`
	gDto.Metadata
}

func (r *RoomResponse) FromModel(model model.Room) {
	r.ID = model.ID
	r.Name = model.Name
	r.Facilities = model.Facilities
	r.Price = model.Price
	r.Capacity = model.Capacity
	r.TotalRooms = model.TotalRooms
	r.Image = model.Image
	r.Active = model.Active
	r.Metadata.FromModel(model.Metadata)
}

type GetRoomsResponse struct {
	Rooms     []RoomResponse `json:"rooms"`
	TotalPage int            `json:"total_page"`
	TotalData int            `json:"total_data"`
}

func (r *GetRoomsResponse) FromModels(models []model.Room, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Rooms = make([]RoomResponse, len(models))
	for i, mod := range models {
		r.Rooms[i].FromModel(mod)
	}
}

type GetAvailabilityRequest struct {
	Date string `json:"date" validate:"required,calendardate"`
}

type AvailabilityResponse struct {
	RoomID         string `json:"room_id"`
	Date           string `json:"date"`
	TotalRooms     int    `json:"total_rooms"`
	AvailableRooms int    `json:"available_rooms"`
}

func (a *AvailabilityResponse) FromModel(room model.Room, date string, availableRooms int) {
	a.RoomID = room.ID
	a.Date = date
	a.TotalRooms = room.TotalRooms
	a.AvailableRooms = availableRooms
}
