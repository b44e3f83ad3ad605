package models

import "encoding/json"

// RawRecord is one upstream listing exactly as the card API returned it.
// It is never stored beyond normalization.
type RawRecord = json.RawMessage

// Coordinates is a listing geolocation.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Listing is the canonical apartment shape served by the API.
//
// Price and Size are parsed numbers, never upstream display strings.
// PricePerSqm is always re-derived from them and is nil whenever either
// operand is missing or non-positive.
type Listing struct {
	ID                string       `json:"id"`
	URL               string       `json:"url"`
	Description       string       `json:"description"`
	RoomConfiguration string       `json:"roomConfiguration"`
	Rooms             *int         `json:"rooms"`
	Published         string       `json:"published"`
	Size              *float64     `json:"size"`
	Price             *float64     `json:"price"`
	PricePerSqm       *int         `json:"pricePerSqm"`
	Address           string       `json:"address"`
	District          string       `json:"district"`
	City              string       `json:"city"`
	Year              *int         `json:"year"`
	BuildingType      string       `json:"buildingType"`
	Brand             string       `json:"brand"`
	Visits            *int         `json:"visits"`
	VisitsWeekly      *int         `json:"visitsWeekly"`
	Location          *Coordinates `json:"location"`
	Image             string       `json:"image"`
}
