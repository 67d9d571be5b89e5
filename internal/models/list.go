package models

import "time"

// PackingList список, над которым совместно работают пользователи
type PackingList struct {
	CreatedAt time.Time `json:"createdAt"`
	Name      string    `json:"name"`
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"ownerId"`
}

// ListMember участник списка
type ListMember struct {
	AddedAt time.Time `json:"addedAt"`
	Role    string    `json:"role"` // Role "owner" или "editor"
	ListID  int64     `json:"packingListId"`
	UserID  int64     `json:"userId"`
}

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
)

// Category категория вещей
type Category struct {
	Name   string `json:"name"`
	ID     int64  `json:"id,omitempty"`
	ListID int64  `json:"packingListId,omitempty"`
}

// Bag сумка, в которую упаковываются вещи
type Bag struct {
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	ID     int64  `json:"id,omitempty"`
	ListID int64  `json:"packingListId,omitempty"`
}

// Traveler путешественник, за которым закреплены вещи
type Traveler struct {
	Name   string `json:"name"`
	ID     int64  `json:"id,omitempty"`
	ListID int64  `json:"packingListId,omitempty"`
}

// Item вещь в списке
type Item struct {
	CategoryID *int64 `json:"categoryId,omitempty"`
	BagID      *int64 `json:"bagId,omitempty"`
	TravelerID *int64 `json:"travelerId,omitempty"`
	Name       string `json:"name"`
	Notes      string `json:"notes,omitempty"`
	ID         int64  `json:"id,omitempty"`
	ListID     int64  `json:"packingListId,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
	Packed     bool   `json:"packed"`
}
