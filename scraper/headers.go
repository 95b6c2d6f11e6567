package scraper

import (
	"fmt"
	"math/rand"
	"time"
)

// browserHeaders is the canonical browser-style header set sent with every
// request. The user-agent is set separately per engine.
var browserHeaders = map[string]string{
	"accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"accept-language":           "en-US,en;q=0.9",
	"cache-control":             "no-cache",
	"pragma":                    "no-cache",
	"sec-ch-ua":                 `"Chromium";v="142", "Google Chrome";v="142", "Not_A Brand";v="99"`,
	"sec-ch-ua-mobile":          "?0",
	"sec-ch-ua-platform":        `"Windows"`,
	"sec-fetch-dest":            "document",
	"sec-fetch-mode":            "navigate",
	"sec-fetch-site":            "cross-site",
	"sec-fetch-user":            "?1",
	"upgrade-insecure-requests": "1",
}

// Chrome shipped 111 on 2023-03-07; its ~4-week cadence puts 200 around
// 2030-09-24. The fabricated UA interpolates between those two anchors.
var (
	uaEpochStart   = time.Date(2023, 3, 7, 0, 0, 0, 0, time.UTC)
	uaEpochEnd     = time.Date(2030, 9, 24, 0, 0, 0, 0, time.UTC)
	uaVersionStart = 111.0
	uaVersionEnd   = 200.0
)

func lerp(a1, b1, a2, b2, n float64) float64 {
	return (n-a1)/(b1-a1)*(b2-a2) + a2
}

// userAgentFor fabricates a Windows/Chrome user agent for the given date,
// jittered by a few versions and floored at 101.
func userAgentFor(today time.Time) string {
	day := func(t time.Time) float64 {
		return float64(t.Unix() / 86400)
	}
	version := int(lerp(day(uaEpochStart), day(uaEpochEnd), uaVersionStart, uaVersionEnd, day(today)))
	version += rand.Intn(7) - 5 // [-5, +1]
	if version < 101 {
		version = 101
	}
	return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36", version)
}

// DefaultUserAgent returns today's fabricated user agent.
func DefaultUserAgent() string {
	return userAgentFor(time.Now())
}
