// Package cmd hosts the scraper entrypoint.
//
// Pipeline overview:
//   - Listing crawl: one browser page walks the directory listing (base URL, then ?page=N) until a page has no
//     member cards or no enabled next-page link, bounded by crawler.max_pages. A failed navigation ends the run.
//   - Enrichment: unique members are visited in sequential batches of crawler.concurrency, each on its own page.
//     A failed profile keeps its listing data and is logged as a warning.
//   - Output: members with a company name are written to a new CSV file (never overwriting an existing one), then
//     optionally saved to Postgres, uploaded to GCS and announced on Pub/Sub. Sink failures do not fail the run.
//
// Quick checklist:
//   - Configure via file (--config), SCRAPER_* env vars (SCRAPER_CRAWLER_CONCURRENCY, SCRAPER_BROWSER_ENGINE, ...)
//     or flags (--base-url, --concurrency, --output, --engine, --max-pages).
//   - Use --engine http for server-rendered directories; the default chromedp engine needs a Chrome binary
//     (browser.exec_path when it is not on PATH).
//   - Set metrics.addr (for example :9090) to expose /metrics and /healthz while a run is in progress.
package cmd
