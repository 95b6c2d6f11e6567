package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/semaphore"
)

type entry struct {
	key string
	url string
}

// pending snapshots the catalog range starting after the stored cursor.
// Snapshotting keeps the store's read transaction short, so workers can
// persist cursor advances while fetches are in flight.
func (s *Scraper) pending() ([]entry, error) {
	cur, err := s.catalog.Cursor()
	if err != nil {
		return nil, err
	}
	if cur == s.catalog.Upper() {
		// previous run drained the range; start over
		if err := s.catalog.SetCursor(""); err != nil {
			return nil, err
		}
		cur = s.catalog.Lower()
	}
	var entries []entry
	err = s.catalog.Iterate(cur, func(key, url string) bool {
		if key == cur {
			// cursor stores the last completed key; resume past it
			return true
		}
		entries = append(entries, entry{key: key, url: url})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Scraper) newProgressBar() *progressbar.ProgressBar {
	if !s.progress {
		return nil
	}
	bar := progressbar.NewOptions(s.catalog.Total(),
		progressbar.OptionSetDescription("Scraping "+s.host),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	_ = bar.Set(s.catalog.CurrentIndex())
	return bar
}

// scrapeLocal drives the cooperative fetch loop: bounded concurrency via a
// weighted semaphore, admission via the polling limiter, cursor advanced as
// a watermark so it never skips an uncompleted key.
func (s *Scraper) scrapeLocal(ctx context.Context) error {
	entries, err := s.pending()
	if err != nil {
		return err
	}
	bar := s.newProgressBar()

	sem := semaphore.NewWeighted(int64(s.concurrency))
	wm := newWatermark()
	var wg sync.WaitGroup
	var (
		cursorOnce sync.Once
		cursorErr  error
	)

	stopped := false
	for _, e := range entries {
		if !s.running.Load() || ctx.Err() != nil {
			stopped = true
			break
		}
		if !s.pathAllowed(e.url) {
			continue
		}
		target := s.absoluteURL(e.url)
		if err := sem.Acquire(ctx, 1); err != nil {
			stopped = true
			break
		}
		wm.start(e.key)
		wg.Add(1)
		go func(key, target string) {
			defer wg.Done()
			defer sem.Release(1)

			var ferr error
			if ferr = s.waitForToken(ctx); ferr == nil {
				ferr = s.fetchOne(ctx, target)
			}
			if ferr != nil {
				s.logger.Warn("fetch failed", "url", target, "err", ferr)
				if s.strategy == StopOnFail {
					s.running.Store(false)
				}
			}
			if mark, ok := wm.finish(key, ferr == nil); ok {
				if err := s.catalog.SetCursor(mark); err != nil {
					s.logger.Error("cursor update failed", "err", err)
					// storage failures end the run: no new work starts
					cursorOnce.Do(func() { cursorErr = err })
					s.running.Store(false)
				}
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(e.key, target)
	}
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	if cursorErr != nil {
		return cursorErr
	}

	if !stopped && s.running.Load() && ctx.Err() == nil {
		// run drained; next Scrape starts from the top
		return s.catalog.SetCursor("")
	}
	return ctx.Err()
}

// scrapeSync is the single-threaded variant: one request at a time, paced by
// a plain sleep of 1/QPS instead of the token bucket.
func (s *Scraper) scrapeSync(ctx context.Context) error {
	entries, err := s.pending()
	if err != nil {
		return err
	}
	bar := s.newProgressBar()
	pause := time.Duration(float64(time.Second) / s.qps)

	stopped := false
	cursorPinned := false
	for _, e := range entries {
		if !s.running.Load() || ctx.Err() != nil {
			stopped = true
			break
		}
		if !s.pathAllowed(e.url) {
			continue
		}
		ferr := s.fetchOne(ctx, s.absoluteURL(e.url))
		if ferr != nil {
			s.logger.Warn("fetch failed", "url", e.url, "err", ferr)
			// a failed key pins the cursor: later successes must not skip it
			cursorPinned = true
			if s.strategy == StopOnFail {
				s.running.Store(false)
			}
		} else if !cursorPinned {
			if err := s.catalog.SetCursor(e.key); err != nil {
				return err
			}
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		select {
		case <-ctx.Done():
			stopped = true
		case <-time.After(pause):
		}
		if stopped {
			break
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if !stopped && s.running.Load() && ctx.Err() == nil {
		return s.catalog.SetCursor("")
	}
	return ctx.Err()
}
