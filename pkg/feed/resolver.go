package feed

import (
	"context"
	"errors"
	"strings"

	"github.com/feedbridge/feedbridge/pkg/config"
)

// ErrSourceUnknown is returned by a Resolver when a hostname has no known
// feed. The fetcher treats it as "silently skip", not as a failure.
var ErrSourceUnknown = errors.New("no feed known for source")

// FeedInfo describes a resolved feed source.
type FeedInfo struct {
	URL   string
	Title string
	Icon  string
}

// Resolver maps a source hostname to its feed. Feed auto-discovery is out of
// scope here; implementations are expected to know their sources up front.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (*FeedInfo, error)
}

// ConfigResolver resolves sources from the static configuration map.
type ConfigResolver struct {
	sources map[string]config.Source
}

// NewConfigResolver creates a resolver over the configured sources
func NewConfigResolver(sources map[string]config.Source) *ConfigResolver {
	normalized := make(map[string]config.Source, len(sources))
	for host, src := range sources {
		normalized[strings.ToLower(host)] = src
	}
	return &ConfigResolver{sources: normalized}
}

// Resolve looks up a hostname in the configured sources
func (r *ConfigResolver) Resolve(_ context.Context, hostname string) (*FeedInfo, error) {
	src, ok := r.sources[strings.ToLower(hostname)]
	if !ok || src.URL == "" {
		return nil, ErrSourceUnknown
	}

	info := &FeedInfo{URL: src.URL, Title: src.Title, Icon: src.Icon}
	if info.Title == "" {
		info.Title = hostname
	}
	return info, nil
}
