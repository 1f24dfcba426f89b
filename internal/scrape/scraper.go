package scrape

import (
	"context"

	"github.com/sells-group/leads-cli/internal/model"
)

// Scraper fetches a single URL and returns it as an HTML page. Any failure,
// including non-HTML content and anti-bot pages, is an error.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.Page, error)
	Name() string
}
