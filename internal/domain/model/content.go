package model

import (
	"strconv"
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
)

type ContentType string

const (
	ContentTypeMovie    ContentType = "movie"
	ContentTypeTVSeries ContentType = "tv_series"
)

// Content is the slice of a catalog record the entitlement engine reads.
// Price is nil when the content store has no price; nil and zero both mean free.
type Content struct {
	ID    string
	Title string
	Type  ContentType
	Price *int64
}

// DefaultPrice returns the content default price, treating a missing price as free.
func (c *Content) DefaultPrice() int64 {
	if c == nil || c.Price == nil || *c.Price < 0 {
		return 0
	}
	return *c.Price
}

// SeasonPrice overrides the series default price for one season.
type SeasonPrice struct {
	ContentID    string    `json:"content_id"`
	SeasonNumber int       `json:"season_number"`
	Price        int64     `json:"price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSeasonPrice validates and constructs a season override.
func NewSeasonPrice(contentID string, season int, price int64) (*SeasonPrice, error) {
	if contentID == "" || season <= 0 || price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &SeasonPrice{
		ContentID:    contentID,
		SeasonNumber: season,
		Price:        price,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// ItemDescription is the line shown to the buyer on the gateway checkout page.
func ItemDescription(title string, season *int) string {
	if season == nil {
		return title
	}
	return title + " - Season " + strconv.Itoa(*season)
}
