package listingapi

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// ListingAPIAdapter отвечает за все походы к upstream property API
type ListingAPIAdapter struct {
	// родительский коллектор: наследники делят его лимиты
	collector *colly.Collector
	baseURL   string
}

func NewListingAPIAdapter(baseURL string) (*ListingAPIAdapter, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ListingAPIAdapter: invalid base URL %q: %w", baseURL, err)
	}

	c := colly.NewCollector(colly.AllowedDomains(u.Hostname()), colly.AllowURLRevisit())

	// Лимиты наследуются всеми клонами коллектора
	err = c.Limit(&colly.LimitRule{
		DomainGlob:  u.Hostname(),
		Parallelism: 2,
		RandomDelay: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("ListingAPIAdapter: failed to set limit rule: %w", err)
	}

	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	return &ListingAPIAdapter{
		collector: c,
		baseURL:   baseURL,
	}, nil
}
