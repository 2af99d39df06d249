package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

// ErrMalformed is returned when a document is not the markup an extractor expects
var ErrMalformed = errors.New("malformed markup")

// Extraction is what an extractor pulls out of one document
type Extraction struct {
	Items   []types.ContentItem
	Profile types.Profile

	source string
}

// Extractor turns raw markup into ordered, normalized content items.
// Swapping extractors never touches the fetch fallback logic.
type Extractor interface {
	Extract(handle string, body []byte) (*Extraction, error)
}

// RSSExtractor reads Nitter-style RSS feeds
type RSSExtractor struct {
	norm *Normalizer
}

// NewRSSExtractor creates an RSS extractor
func NewRSSExtractor(norm *Normalizer) *RSSExtractor {
	return &RSSExtractor{norm: norm}
}

// Extract parses an RSS or Atom document
func (e *RSSExtractor) Extract(handle string, body []byte) (*Extraction, error) {
	if !bytes.Contains(body, []byte("<rss")) && !bytes.Contains(body, []byte("<channel")) && !bytes.Contains(body, []byte("<feed")) {
		return nil, fmt.Errorf("%w: not a feed", ErrMalformed)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	raw := make([]rawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		// Prefer the full description over the title
		markup := item.Description
		if strings.TrimSpace(markup) == "" {
			markup = item.Content
		}
		if strings.TrimSpace(markup) == "" {
			markup = item.Title
		}
		raw = append(raw, rawItem{Markup: markup, Timestamp: item.Published})
	}

	var imageURL string
	if feed.Image != nil {
		imageURL = feed.Image.URL
	}

	return &Extraction{
		Items:   e.norm.Items(raw),
		Profile: deriveProfile(e.norm, handle, feed.Title, imageURL, feed.Description),
	}, nil
}

// NitterHTMLExtractor reads a Nitter timeline page
type NitterHTMLExtractor struct {
	norm *Normalizer
}

// NewNitterHTMLExtractor creates an HTML timeline extractor
func NewNitterHTMLExtractor(norm *Normalizer) *NitterHTMLExtractor {
	return &NitterHTMLExtractor{norm: norm}
}

// Extract parses the timeline items of a Nitter profile page
func (e *NitterHTMLExtractor) Extract(handle string, body []byte) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Find(NitterTimeline).Length() == 0 && doc.Find(NitterTimelineItem).Length() == 0 {
		return nil, fmt.Errorf("%w: no timeline", ErrMalformed)
	}

	var raw []rawItem
	doc.Find(NitterTimelineItem).Each(func(_ int, s *goquery.Selection) {
		markup, err := s.Find(NitterTweetContent).First().Html()
		if err != nil {
			return
		}
		stamp, _ := s.Find(NitterTweetDate).First().Attr("title")
		raw = append(raw, rawItem{
			Markup:    markup,
			Timestamp: stamp,
			Repost:    s.Find(NitterRetweetHeader).Length() > 0,
		})
	})

	avatar, _ := doc.Find(NitterAvatar).First().Attr("src")
	return &Extraction{
		Items: e.norm.Items(raw),
		Profile: deriveProfile(e.norm, handle,
			doc.Find(NitterFullName).First().Text(),
			avatar,
			doc.Find(NitterBio).First().Text()),
	}, nil
}

// XTimelineExtractor reads a rendered x.com profile page
type XTimelineExtractor struct {
	norm *Normalizer
}

// NewXTimelineExtractor creates an extractor for browser-rendered pages
func NewXTimelineExtractor(norm *Normalizer) *XTimelineExtractor {
	return &XTimelineExtractor{norm: norm}
}

// Extract parses tweet articles out of the rendered DOM
func (e *XTimelineExtractor) Extract(handle string, body []byte) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Find(TweetArticle).Length() == 0 && doc.Find(FeedContainer).Length() == 0 {
		return nil, fmt.Errorf("%w: no tweets rendered", ErrMalformed)
	}

	var raw []rawItem
	doc.Find(TweetArticle).Each(func(_ int, s *goquery.Selection) {
		markup, err := s.Find(TweetText).First().Html()
		if err != nil {
			return
		}
		stamp, _ := s.Find(TweetTimestamp).First().Attr("datetime")
		social := strings.ToLower(s.Find(RetweetIndicator).Text())
		raw = append(raw, rawItem{
			Markup:    markup,
			Timestamp: stamp,
			Repost:    strings.Contains(social, "repost") || strings.Contains(social, "retweeted"),
		})
	})

	avatar, _ := doc.Find(ProfileAvatar).First().Attr("src")
	return &Extraction{
		Items: e.norm.Items(raw),
		Profile: deriveProfile(e.norm, handle,
			doc.Find(ProfileName).First().Find("span").First().Text(),
			avatar,
			doc.Find(ProfileBio).First().Text()),
	}, nil
}
