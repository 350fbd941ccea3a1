package models

import "time"

// StoredPage is a cached scrape response, keyed by id in the memory store.
type StoredPage struct {
	ID        string
	Request   ScrapeRequest
	Response  ScrapeResult
	CreatedAt time.Time
}
