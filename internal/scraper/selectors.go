package scraper

// DOM selectors
// These are isolated here because both Nitter and X change their markup
// Update these when extraction breaks

// x.com (browser-rendered)
const (
	FeedContainer = `[data-testid="primaryColumn"]`
	TweetArticle  = `article[data-testid="tweet"]`

	TweetText        = `[data-testid="tweetText"]`
	TweetTimestamp   = `time`
	RetweetIndicator = `[data-testid="socialContext"]`

	ProfileName   = `[data-testid="UserName"]`
	ProfileBio    = `[data-testid="UserDescription"]`
	ProfileAvatar = `img[src*="profile_images"]`
)

// Nitter timeline pages
const (
	NitterTimeline      = `.timeline`
	NitterTimelineItem  = `.timeline-item`
	NitterTweetContent  = `.tweet-content`
	NitterTweetDate     = `.tweet-date a`
	NitterRetweetHeader = `.retweet-header`

	NitterFullName = `.profile-card-fullname`
	NitterBio      = `.profile-bio`
	NitterAvatar   = `.profile-card-avatar img`
)

// Common wait conditions
const (
	WaitForTweets = TweetArticle
)
