package etsy

// Wire types for the Etsy v3 API. Listings are treated as immutable
// snapshots per fetch; nothing here is persisted locally.

// Money is Etsy's fixed-point price representation.
type Money struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

type Shop struct {
	ShopID       int64  `json:"shop_id"`
	ShopName     string `json:"shop_name"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	CurrencyCode string `json:"currency_code"`
}

type ListingImage struct {
	ListingImageID int64  `json:"listing_image_id"`
	ListingID      int64  `json:"listing_id"`
	Rank           int    `json:"rank"`
	URLFull        string `json:"url_fullxfull"`
	URL570xN       string `json:"url_570xN"`
}

type Listing struct {
	ListingID   int64          `json:"listing_id"`
	UserID      int64          `json:"user_id"`
	ShopID      int64          `json:"shop_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	State       string         `json:"state"`
	Quantity    int            `json:"quantity"`
	URL         string         `json:"url"`
	Price       Money          `json:"price"`
	Tags        []string       `json:"tags"`
	Images      []ListingImage `json:"images"`
}

// ListingStateActive is the only state the sync pipeline publishes.
const ListingStateActive = "active"

// Collection endpoints share a count+results envelope.
type shopsPage struct {
	Count   int    `json:"count"`
	Results []Shop `json:"results"`
}

type listingsPage struct {
	Count   int       `json:"count"`
	Results []Listing `json:"results"`
}
