package coles

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

const (
	homepageURL  = "https://www.coles.com.au"
	searchAPIURL = "https://www.coles.com.au/api/bff/products/search"

	cookieAcceptSelector = "button#onetrust-accept-btn-handler"
	noResultsSelector    = `[data-testid="search-no-results"]`
	wafSelector          = `iframe[src*="distil_r_captcha.html"]`
)

// pageResult is the outcome of navigating one search results page: exactly
// one of payload, noResults or blocked is set.
type pageResult struct {
	payload   []byte
	noResults bool
	blocked   bool
}

// session abstracts one browser session over a query so the pagination and
// normalization logic can be exercised without Chrome.
type session interface {
	prime(ctx context.Context) error
	searchPage(ctx context.Context, query string, pageNumber int) (*pageResult, error)
	evidence() (screenshot, pageHTML []byte)
	close()
}

// rodSession drives a real browser page. The search page renders its
// results from a BFF API call, so instead of scraping the DOM the session
// intercepts that call and races it against the no-results marker and the
// WAF challenge frame.
type rodSession struct {
	page    *rod.Page
	timeout time.Duration
}

func newRodSession(browser *rod.Browser, userAgent string, timeout time.Duration) (*rodSession, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		return nil, fmt.Errorf("setting user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1920, Height: 1080, DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}
	return &rodSession{page: page, timeout: timeout}, nil
}

// prime visits the homepage and accepts the cookie consent banner so the
// search pages load without the overlay. Best effort: the banner is absent
// on warm sessions.
func (s *rodSession) prime(ctx context.Context) error {
	page := s.page.Context(ctx)

	if err := page.Timeout(s.timeout).Navigate(homepageURL); err != nil {
		return fmt.Errorf("navigating to homepage: %w", err)
	}

	el, err := page.Timeout(10 * time.Second).Element(cookieAcceptSelector)
	if err != nil {
		log.Debug().Msg("Cookie consent banner not found, continuing")
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		log.Debug().Err(err).Msg("Failed to click cookie consent, continuing")
		return nil
	}
	time.Sleep(2 * time.Second)
	return nil
}

// searchPage navigates to one search results page and waits for whichever
// comes first: the intercepted API response, the no-results marker, or the
// WAF challenge.
func (s *rodSession) searchPage(ctx context.Context, query string, pageNumber int) (*pageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	page := s.page.Context(ctx)

	payloadCh := make(chan []byte, 1)
	noResultsCh := make(chan struct{}, 1)
	blockedCh := make(chan struct{}, 1)

	router := page.HijackRequests()
	err := router.Add(searchAPIURL+"*", "", func(h *rod.Hijack) {
		if h.Request.Req().Method != http.MethodGet {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		if err := h.LoadResponse(http.DefaultClient, true); err != nil {
			log.Warn().Err(err).Msg("Failed to load search API response")
			return
		}
		select {
		case payloadCh <- []byte(h.Response.Body()):
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("installing request hijack: %w", err)
	}
	go router.Run()
	defer func() {
		if err := router.Stop(); err != nil {
			log.Debug().Err(err).Msg("Failed to stop hijack router")
		}
	}()

	go func() {
		if _, err := page.Element(noResultsSelector); err == nil {
			select {
			case noResultsCh <- struct{}{}:
			default:
			}
		}
	}()
	go func() {
		if _, err := page.Element(wafSelector); err == nil {
			select {
			case blockedCh <- struct{}{}:
			default:
			}
		}
	}()

	searchURL := fmt.Sprintf("https://www.coles.com.au/search/products?q=%s&page=%d",
		url.QueryEscape(query), pageNumber)
	if err := page.Navigate(searchURL); err != nil {
		return nil, fmt.Errorf("navigating to search page %d: %w", pageNumber, err)
	}

	select {
	case payload := <-payloadCh:
		return &pageResult{payload: payload}, nil
	case <-noResultsCh:
		return &pageResult{noResults: true}, nil
	case <-blockedCh:
		return &pageResult{blocked: true}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for search page %d: %w", pageNumber, ctx.Err())
	}
}

// evidence captures the current page for diagnostics, best effort.
func (s *rodSession) evidence() (screenshot, pageHTML []byte) {
	if s.page == nil {
		return nil, nil
	}
	shot, err := s.page.Screenshot(true, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to capture screenshot")
	} else {
		screenshot = shot
	}
	html, err := s.page.HTML()
	if err != nil {
		log.Debug().Err(err).Msg("Failed to capture page HTML")
	} else {
		pageHTML = []byte(html)
	}
	return screenshot, pageHTML
}

func (s *rodSession) close() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close page")
		}
	}
}
