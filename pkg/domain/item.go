package domain

import "errors"

// ErrEmptyItem indicates a feed entry with no usable text content.
var ErrEmptyItem = errors.New("item has neither title nor description")

// Item is a normalized feed entry. PubDate keeps the raw date string from the
// feed; the composer falls back to the current time when it is empty.
type Item struct {
	Title       string
	Description string
	Link        string
	PubDate     string
	GUID        string
}

// NewItem builds a validated item. Entries with both title and description
// empty carry nothing worth notifying about and are rejected here, before any
// of them can reach the dedup store.
func NewItem(title, description, link, pubDate, guid string) (Item, error) {
	if title == "" && description == "" {
		return Item{}, ErrEmptyItem
	}
	return Item{
		Title:       title,
		Description: description,
		Link:        link,
		PubDate:     pubDate,
		GUID:        guid,
	}, nil
}

// Identity returns the dedup key for the item within its source: the first
// non-empty of GUID, Link, Title, Description. Two items with the same
// identity under the same source are the same item forever.
func (i Item) Identity() string {
	switch {
	case i.GUID != "":
		return i.GUID
	case i.Link != "":
		return i.Link
	case i.Title != "":
		return i.Title
	default:
		return i.Description
	}
}
