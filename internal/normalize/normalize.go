// Package normalize maps raw upstream card records into canonical listings.
// Everything here is pure; failures are reported per record so one malformed
// card never fails a whole batch.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/oikotie-tools/apartment-radar/internal/models"
)

// text accepts a JSON string, number, or null and keeps the raw textual form.
// Upstream is inconsistent: price arrives as "287 000 €" while size may be a
// bare number or a composite string like "62.5 / 60.0 m²".
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = text(n.String())
	return nil
}

type card struct {
	ID                json.Number `json:"id"`
	URL               string      `json:"url"`
	Description       string      `json:"description"`
	RoomConfiguration string      `json:"roomConfiguration"`
	Rooms             *int        `json:"rooms"`
	Published         string      `json:"published"`
	Size              text        `json:"size"`
	Price             text        `json:"price"`
	BuildingData      struct {
		Address      string `json:"address"`
		District     string `json:"district"`
		City         string `json:"city"`
		Year         *int   `json:"year"`
		BuildingType string `json:"buildingType"`
	} `json:"buildingData"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	Visits       *int                `json:"visits"`
	VisitsWeekly *int                `json:"visits_weekly"`
	Location     *models.Coordinates `json:"location"`
	Images       struct {
		Wide string `json:"wide"`
	} `json:"images"`
}

// Record converts one raw upstream record into a canonical Listing.
func Record(raw models.RawRecord) (models.Listing, error) {
	var c card
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Listing{}, fmt.Errorf("decode card: %w", err)
	}

	id := c.ID.String()
	if id == "" {
		id = uuid.NewString()
	}

	listing := models.Listing{
		ID:                id,
		URL:               c.URL,
		Description:       c.Description,
		RoomConfiguration: c.RoomConfiguration,
		Rooms:             c.Rooms,
		Published:         c.Published,
		Address:           c.BuildingData.Address,
		District:          c.BuildingData.District,
		City:              c.BuildingData.City,
		Year:              c.BuildingData.Year,
		BuildingType:      c.BuildingData.BuildingType,
		Brand:             c.Brand.Name,
		Visits:            c.Visits,
		VisitsWeekly:      c.VisitsWeekly,
		Location:          c.Location,
		Image:             c.Images.Wide,
	}

	if price, ok := ParseNumber(string(c.Price)); ok {
		listing.Price = &price
	}
	if size, ok := ParseNumber(string(c.Size)); ok {
		listing.Size = &size
	}
	listing.PricePerSqm = pricePerSqm(listing.Price, listing.Size)

	return listing, nil
}

// ParseNumber extracts a numeric value from an upstream display string.
// Composite values keep only the part before the first slash ("62.5 / 60.0"
// means living area / total area). Every character that is not a digit,
// comma, or period is stripped, then a comma acts as the decimal separator
// when no period is present ("287 000 €" -> 287000, "62,5" -> 62.5).
func ParseNumber(raw string) (float64, bool) {
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	if !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// pricePerSqm derives the rounded per-square-meter price. Upstream sometimes
// carries its own value; it is never trusted.
func pricePerSqm(price, size *float64) *int {
	if price == nil || size == nil || *price <= 0 || *size <= 0 {
		return nil
	}
	v := int(math.Round(*price / *size))
	return &v
}
