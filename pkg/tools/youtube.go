package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-go-golems/lampwick/pkg/conversation"
)

// VideoSearcher searches for videos matching a query.
type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]conversation.VideoSearchResult, error)
}

// VideoSearchResponse is the function response of searchYouTube.
type VideoSearchResponse struct {
	Results []conversation.VideoSearchResult `json:"results"`
}

// MockVideoSearcher serves canned results keyed on query keywords, with a
// short simulated API latency.
type MockVideoSearcher struct {
	Latency time.Duration
}

func NewMockVideoSearcher() *MockVideoSearcher {
	return &MockVideoSearcher{Latency: 1500 * time.Millisecond}
}

func (s *MockVideoSearcher) Search(ctx context.Context, query string) ([]conversation.VideoSearchResult, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "lofi") || strings.Contains(lower, "music"):
		return []conversation.VideoSearchResult{
			{ID: "yt1", VideoID: "jfKfPfyJRdk", Title: "lofi hip hop radio 📚 - beats to relax/study to", ThumbnailURL: "https://i.ytimg.com/vi/jfKfPfyJRdk/hqdefault_live.jpg", ChannelTitle: "Lofi Girl"},
			{ID: "yt2", VideoID: "5qap5aO4i9A", Title: "lofi hip hop radio 💤 - beats to sleep/chill to", ThumbnailURL: "https://i.ytimg.com/vi/5qap5aO4i9A/hqdefault_live.jpg", ChannelTitle: "Lofi Girl"},
			{ID: "yt3", VideoID: "rUxyKA_-grg", Title: "24/7 lofi hip hop radio - beats to study/relax/game to", ThumbnailURL: "https://i.ytimg.com/vi/rUxyKA_-grg/hqdefault_live.jpg", ChannelTitle: "the bootleg boy"},
		}, nil
	case strings.Contains(lower, "react") || strings.Contains(lower, "tutorial"):
		return []conversation.VideoSearchResult{
			{ID: "yt4", VideoID: "bMknfKXIFA8", Title: "React Course - Beginner's Tutorial for React JavaScript Library [2022]", ThumbnailURL: "https://i.ytimg.com/vi/bMknfKXIFA8/hqdefault.jpg", ChannelTitle: "freeCodeCamp.org"},
			{ID: "yt5", VideoID: "SqcY0GlETPk", Title: "React Tutorial for Beginners", ThumbnailURL: "https://i.ytimg.com/vi/SqcY0GlETPk/hqdefault.jpg", ChannelTitle: "Programming with Mosh"},
		}, nil
	default:
		return []conversation.VideoSearchResult{
			{ID: "yt6", VideoID: "dQw4w9WgXcQ", Title: "Official Music Video", ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", ChannelTitle: "Official Channel"},
			{ID: "yt7", VideoID: "V-_O7nl0Ii0", Title: "The History of the World, I Guess", ThumbnailURL: "https://i.ytimg.com/vi/V-_O7nl0Ii0/hqdefault.jpg", ChannelTitle: "bill wurtz"},
		}, nil
	}
}

type youtubeInput struct {
	Query string `json:"query" jsonschema:"description=The search query for YouTube\\, e.g. \"how to learn react\" or \"lofi hip hop radio\"."`
}

// NewYouTubeTool declares the searchYouTube tool backed by the given
// searcher.
func NewYouTubeTool(searcher VideoSearcher) Definition {
	return Definition{
		Name:        "searchYouTube",
		Description: "Search for videos on YouTube and display the results to the user.",
		Parameters:  reflectSchema(youtubeInput{}),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var in youtubeInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			results, err := searcher.Search(ctx, in.Query)
			if err != nil {
				return nil, err
			}
			return &VideoSearchResponse{Results: results}, nil
		},
	}
}
