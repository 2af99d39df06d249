package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rssFeed renders a Nitter-style feed with n usable posts plus noise.
func rssFeed(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
<channel>
<title>Tibo / @tibo_maker</title>
<link>https://nitter.example/tibo_maker</link>
<description>Twitter feed for: @tibo_maker. Generated by nitter</description>
<image><title>Tibo</title><url>https://nitter.example/pic/avatar.jpg</url><link>https://nitter.example/tibo_maker</link></image>
<item><title>RT by @tibo_maker</title><description><![CDATA[RT @levelsio: someone else's words entirely]]></description></item>
<item><title>ok</title><description><![CDATA[<p>ok</p>]]></description></item>
`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<item><title>t%d</title><description><![CDATA[<p>Post number %d about building &amp; shipping</p>]]></description><pubDate>Mon, 01 Jan 2024 10:0%d:00 GMT</pubDate></item>
`, i, i, i%10)
	}
	b.WriteString("</channel>\n</rss>\n")
	return b.String()
}

func TestRSSExtractor(t *testing.T) {
	ext, err := NewRSSExtractor(NewNormalizer(10)).Extract("tibo_maker", []byte(rssFeed(4)))
	require.NoError(t, err)

	require.Len(t, ext.Items, 4)
	assert.Equal(t, "Post number 1 about building & shipping", ext.Items[0].Text)
	assert.Equal(t, "Mon, 01 Jan 2024 10:01:00 GMT", ext.Items[0].Timestamp)
	assert.Equal(t, "Post number 4 about building & shipping", ext.Items[3].Text)

	assert.Equal(t, "Tibo", ext.Profile.DisplayName)
	assert.Equal(t, "https://nitter.example/pic/avatar.jpg", ext.Profile.AvatarURL)
	assert.Equal(t, "tibo_maker", ext.Profile.Handle)
}

func TestRSSExtractorRejectsNonFeed(t *testing.T) {
	_, err := NewRSSExtractor(NewNormalizer(10)).Extract("x", []byte("<html><body>rate limited</body></html>"))
	assert.ErrorIs(t, err, ErrMalformed)
}

const nitterPage = `<!DOCTYPE html>
<html><body>
<div class="profile-card">
  <a class="profile-card-avatar" href="/pic/avatar.jpg"><img src="/pic/avatar.jpg"></a>
  <a class="profile-card-fullname" href="/levelsio">Pieter Levels</a>
  <div class="profile-bio"><p>Making <b>things</b></p></div>
</div>
<div class="timeline">
  <div class="timeline-item">
    <div class="tweet-body">
      <span class="tweet-date"><a href="/levelsio/status/1" title="Jan 1, 2024 · 10:00 AM UTC">1h</a></span>
      <div class="tweet-content media-body">Shipped a new feature <a href="#">today</a>!</div>
    </div>
  </div>
  <div class="timeline-item">
    <div class="tweet-body">
      <div class="retweet-header"><span>levelsio retweeted</span></div>
      <div class="tweet-content media-body">This was somebody else's post though</div>
    </div>
  </div>
  <div class="timeline-item">
    <div class="tweet-body">
      <div class="tweet-content media-body">Revenue update &gt; $100k this month</div>
    </div>
  </div>
</div>
</body></html>`

func TestNitterHTMLExtractor(t *testing.T) {
	ext, err := NewNitterHTMLExtractor(NewNormalizer(10)).Extract("levelsio", []byte(nitterPage))
	require.NoError(t, err)

	require.Len(t, ext.Items, 2)
	assert.Equal(t, "Shipped a new feature today !", ext.Items[0].Text)
	assert.Equal(t, "Jan 1, 2024 · 10:00 AM UTC", ext.Items[0].Timestamp)
	assert.Equal(t, "Revenue update > $100k this month", ext.Items[1].Text)

	assert.Equal(t, "Pieter Levels", ext.Profile.DisplayName)
	assert.Equal(t, "Making things", ext.Profile.Bio)
	// Relative avatar paths are not usable by callers
	assert.Equal(t, DefaultAvatarURL("levelsio"), ext.Profile.AvatarURL)
}

func TestNitterHTMLExtractorRejectsUnrelatedPage(t *testing.T) {
	_, err := NewNitterHTMLExtractor(NewNormalizer(10)).Extract("x", []byte("<html><body><h1>Instance has been rate limited</h1></body></html>"))
	assert.ErrorIs(t, err, ErrMalformed)
}

const xPage = `<html><body><main><div data-testid="primaryColumn">
<div data-testid="UserName"><div><span>Tibo</span></div><div><span>@tibo_maker</span></div></div>
<div data-testid="UserDescription">Building tools for creators</div>
<img src="https://pbs.twimg.com/profile_images/1/photo.jpg">
<article data-testid="tweet">
  <div data-testid="socialContext">Tibo reposted</div>
  <div data-testid="tweetText"><span>Not Tibo's own words at all</span></div>
</article>
<article data-testid="tweet">
  <time datetime="2024-01-02T10:00:00.000Z">Jan 2</time>
  <div data-testid="tweetText"><span>How I grew to 100k followers</span><img alt="🚀"></div>
</article>
</div></main></body></html>`

func TestXTimelineExtractor(t *testing.T) {
	ext, err := NewXTimelineExtractor(NewNormalizer(10)).Extract("tibo_maker", []byte(xPage))
	require.NoError(t, err)

	require.Len(t, ext.Items, 1)
	assert.Equal(t, "How I grew to 100k followers", ext.Items[0].Text)
	assert.Equal(t, "2024-01-02T10:00:00.000Z", ext.Items[0].Timestamp)

	assert.Equal(t, "Tibo", ext.Profile.DisplayName)
	assert.Equal(t, "Building tools for creators", ext.Profile.Bio)
	assert.Equal(t, "https://pbs.twimg.com/profile_images/1/photo.jpg", ext.Profile.AvatarURL)
}
