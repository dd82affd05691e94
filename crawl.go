package mask

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// CrawlConfig bounds a breadth-first crawl.
type CrawlConfig struct {
	MaxPages  int // total successful pages collected
	MaxDepth  int // links at MaxDepth are not followed further
	BatchSize int // concurrent fetches per wave
}

// DefaultCrawlConfig is used by the scrape stage for documentation-like URLs.
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{MaxPages: 5, MaxDepth: 2, BatchSize: 3}
}

type crawlItem struct {
	url   string
	depth int
}

// Crawl walks same-domain links breadth-first from startURL. Ordering is by
// enqueue time, not fetch completion: within a concurrent batch the results
// keep queue order even when a later URL finishes first. The visited set and
// page budget guarantee termination on cyclic link graphs.
func Crawl(ctx context.Context, fetcher Fetcher, startURL string, cfg CrawlConfig, logger *slog.Logger) []ScrapedPage {
	if logger == nil {
		logger = nopLogger
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	queue := []crawlItem{{url: startURL, depth: 0}}
	visited := map[string]bool{}
	var results []ScrapedPage

	for len(queue) > 0 && len(results) < cfg.MaxPages {
		// Pop the next batch of unvisited URLs, bounded by the remaining
		// page budget so a wide batch cannot overshoot it.
		want := min(cfg.BatchSize, cfg.MaxPages-len(results))
		var batch []crawlItem
		for len(queue) > 0 && len(batch) < want {
			item := queue[0]
			queue = queue[1:]
			if visited[item.url] {
				continue
			}
			visited[item.url] = true
			batch = append(batch, item)
		}
		if len(batch) == 0 {
			continue
		}

		pages := make([]ScrapedPage, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, item := range batch {
			i, item := i, item
			g.Go(func() error {
				pages[i] = fetcher.Fetch(gctx, item.url)
				return nil
			})
		}
		_ = g.Wait() // fetch failures live inside each ScrapedPage

		for i, page := range pages {
			if page.Err != "" {
				logger.Warn("crawl: page failed", "url", page.URL, "error", page.Err)
				continue
			}
			results = append(results, page)
			if batch[i].depth < cfg.MaxDepth {
				for _, link := range page.Links {
					if !visited[link] {
						queue = append(queue, crawlItem{url: link, depth: batch[i].depth + 1})
					}
				}
			}
		}
	}

	logger.Info("crawl: done", "start", startURL, "pages", len(results))
	return results
}
