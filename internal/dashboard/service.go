// Package dashboard assembles the home page: visible channels, the
// novidades feed and the event calendar.
package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campuslink/campuslink/internal/channels"
)

// NewsItem is an entry of the novidades feed.
type NewsItem struct {
	ID          int64
	Avatar      string
	AvatarColor string
	Source      string
	Title       string
	Body        string
	PublishedAt time.Time
}

// Event is a calendar entry.
type Event struct {
	ID       int64
	Title    string
	Color    string
	StartsAt time.Time
	EndsAt   time.Time
}

// NewsPort lists the latest novidades.
type NewsPort interface {
	Latest(ctx context.Context, limit int) ([]NewsItem, error)
}

// EventsPort lists events of a calendar day.
type EventsPort interface {
	OnDay(ctx context.Context, day time.Time) ([]Event, error)
}

// ChannelsPort lists the channels visible to a user.
type ChannelsPort interface {
	VisibleChannels(ctx context.Context, userID int64) ([]channels.Summary, error)
}

// NewsLimit bounds the novidades feed on the dashboard.
const NewsLimit = 20

// Overview is everything the dashboard renders.
type Overview struct {
	Channels    []channels.Summary
	News        []NewsItem
	SelectedDay time.Time
	Events      []Event
}

// Service fans out the three dashboard queries.
type Service struct {
	news     NewsPort
	events   EventsPort
	channels ChannelsPort
}

// NewService builds Service instance.
func NewService(news NewsPort, events EventsPort, channels ChannelsPort) *Service {
	return &Service{news: news, events: events, channels: channels}
}

// Overview loads the dashboard sections concurrently. A failure in any
// section fails the whole page.
func (s *Service) Overview(ctx context.Context, userID int64, day time.Time) (Overview, error) {
	day = truncateToDay(day)
	overview := Overview{SelectedDay: day}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summaries, err := s.channels.VisibleChannels(ctx, userID)
		if err != nil {
			return err
		}
		overview.Channels = summaries
		return nil
	})
	g.Go(func() error {
		news, err := s.news.Latest(ctx, NewsLimit)
		if err != nil {
			return err
		}
		overview.News = news
		return nil
	})
	g.Go(func() error {
		events, err := s.events.OnDay(ctx, day)
		if err != nil {
			return err
		}
		overview.Events = events
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return overview, nil
}

func truncateToDay(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
