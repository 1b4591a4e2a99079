package etsy

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// listingPageSize is the largest page Etsy serves per request.
	listingPageSize = 100

	// imageBatchSize is the most listing ids one batch lookup accepts.
	imageBatchSize = 100

	// maxImagesPerListing caps how many images are kept per listing,
	// matching what the catalog feed can carry.
	maxImagesPerListing = 9
)

// Client exposes the marketplace operations the sync pipeline needs. All
// calls flow through the executor, so rate limiting, retries, and token
// freshness are already handled.
type Client struct {
	exec   *Executor
	logger *zap.Logger
}

func NewClient(exec *Executor, logger *zap.Logger) *Client {
	return &Client{exec: exec, logger: logger}
}

// GetShop fetches one shop by its numeric id.
func (c *Client) GetShop(ctx context.Context, shopID string) (*Shop, error) {
	if err := validateShopID(shopID); err != nil {
		return nil, err
	}
	var shop Shop
	if err := c.exec.Do(ctx, Request{Path: "/shops/" + shopID}, &shop); err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetShopByName searches shops by name and returns the one whose name
// matches exactly, ignoring case. A search that only yields near matches
// fails with a NoMatchError listing the candidates.
func (c *Client) GetShopByName(ctx context.Context, name string) (*Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyShopName
	}

	var page shopsPage
	query := url.Values{"shop_name": {name}}
	if err := c.exec.Do(ctx, Request{Path: "/shops", Query: query}, &page); err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(page.Results))
	for i := range page.Results {
		if strings.EqualFold(page.Results[i].ShopName, name) {
			return &page.Results[i], nil
		}
		candidates = append(candidates, page.Results[i].ShopName)
	}
	return nil, &NoMatchError{Name: name, Candidates: candidates}
}

// GetShopListings fetches every active listing of a shop, walking the
// paginated endpoint until it is drained.
func (c *Client) GetShopListings(ctx context.Context, shopID string) ([]Listing, error) {
	if err := validateShopID(shopID); err != nil {
		return nil, err
	}

	var all []Listing
	offset := 0
	for {
		query := url.Values{
			"limit":  {strconv.Itoa(listingPageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		var page listingsPage
		err := c.exec.Do(ctx, Request{
			Path:  fmt.Sprintf("/shops/%s/listings/active", shopID),
			Query: query,
		}, &page)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Results...)

		// A short page always terminates. The count guard additionally
		// stops the walk when the reported total disagrees with full
		// pages, so a stale count cannot loop forever.
		if len(page.Results) < listingPageSize {
			break
		}
		offset += len(page.Results)
		if offset >= page.Count {
			break
		}
	}

	c.logger.Info("fetched active listings",
		zap.String("shop_id", shopID),
		zap.Int("count", len(all)),
	)
	return all, nil
}

// GetListingsWithImages resolves images for the given listings in batches.
// Each listing's images come back sorted by rank and capped at the feed
// maximum; listings the response returned without images are left out of
// the map entirely.
func (c *Client) GetListingsWithImages(ctx context.Context, listingIDs []int64) (map[int64][]ListingImage, error) {
	images := make(map[int64][]ListingImage, len(listingIDs))

	for start := 0; start < len(listingIDs); start += imageBatchSize {
		end := start + imageBatchSize
		if end > len(listingIDs) {
			end = len(listingIDs)
		}

		query := url.Values{
			"listing_ids": {joinIDs(listingIDs[start:end])},
			"includes":    {"Images"},
		}
		var page listingsPage
		if err := c.exec.Do(ctx, Request{Path: "/listings/batch", Query: query}, &page); err != nil {
			return nil, err
		}

		for i := range page.Results {
			listing := &page.Results[i]
			if len(listing.Images) == 0 {
				continue
			}
			imgs := append([]ListingImage(nil), listing.Images...)
			sort.Slice(imgs, func(a, b int) bool { return imgs[a].Rank < imgs[b].Rank })
			if len(imgs) > maxImagesPerListing {
				imgs = imgs[:maxImagesPerListing]
			}
			images[listing.ListingID] = imgs
		}
	}

	return images, nil
}

func validateShopID(shopID string) error {
	if shopID == "" {
		return ErrInvalidShopID
	}
	if _, err := strconv.ParseUint(shopID, 10, 64); err != nil {
		return ErrInvalidShopID
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
