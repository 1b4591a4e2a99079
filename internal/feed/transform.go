// Package feed maps marketplace listings onto the catalog CSV schema the
// downstream crawler consumes.
package feed

import (
	"fmt"
	"strconv"
	"strings"

	"shopsync/feedhub/internal/etsy"
)

const (
	conditionNew       = "new"
	availabilityIn     = "in stock"
	availabilityOut    = "out of stock"
	descriptionRuneCap = 9999
)

// Record is one row of the catalog feed. All values are already
// stringified the way the CSV expects them.
type Record struct {
	ID                  string
	Title               string
	Description         string
	Availability        string
	Condition           string
	Price               string
	Link                string
	ImageLink           string
	AdditionalImageLink string
	Brand               string
	Inventory           string
}

// Transform maps listings to feed records. Image maps come from the batch
// lookup and are already rank-sorted and capped; listings without an
// entry are kept, just without image links.
func Transform(shop *etsy.Shop, listings []etsy.Listing, images map[int64][]etsy.ListingImage) []Record {
	records := make([]Record, 0, len(listings))
	for i := range listings {
		listing := &listings[i]
		rec := Record{
			ID:           strconv.FormatInt(listing.ListingID, 10),
			Title:        collapseWhitespace(listing.Title),
			Description:  truncateRunes(collapseWhitespace(listing.Description), descriptionRuneCap),
			Availability: availability(listing),
			Condition:    conditionNew,
			Price:        formatPrice(listing.Price),
			Link:         listing.URL,
			Brand:        shop.ShopName,
			Inventory:    strconv.Itoa(listing.Quantity),
		}
		if imgs := images[listing.ListingID]; len(imgs) > 0 {
			rec.ImageLink = imageURL(imgs[0])
			rest := make([]string, 0, len(imgs)-1)
			for _, img := range imgs[1:] {
				rest = append(rest, imageURL(img))
			}
			rec.AdditionalImageLink = strings.Join(rest, ",")
		}
		records = append(records, rec)
	}
	return records
}

func availability(listing *etsy.Listing) string {
	if listing.State == etsy.ListingStateActive && listing.Quantity > 0 {
		return availabilityIn
	}
	return availabilityOut
}

// formatPrice renders Etsy's fixed-point money as "12.50 USD".
func formatPrice(m etsy.Money) string {
	divisor := m.Divisor
	if divisor <= 0 {
		divisor = 100
	}
	return fmt.Sprintf("%.2f %s", float64(m.Amount)/float64(divisor), m.CurrencyCode)
}

func imageURL(img etsy.ListingImage) string {
	if img.URLFull != "" {
		return img.URLFull
	}
	return img.URL570xN
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
