package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslink/campuslink/internal/channels"
)

type stubNews struct {
	items []NewsItem
	err   error
	limit int
}

func (s *stubNews) Latest(_ context.Context, limit int) ([]NewsItem, error) {
	s.limit = limit
	return s.items, s.err
}

type stubEvents struct {
	events []Event
	day    time.Time
}

func (s *stubEvents) OnDay(_ context.Context, day time.Time) ([]Event, error) {
	s.day = day
	return s.events, nil
}

type stubChannels struct {
	summaries []channels.Summary
	userID    int64
}

func (s *stubChannels) VisibleChannels(_ context.Context, userID int64) ([]channels.Summary, error) {
	s.userID = userID
	return s.summaries, nil
}

func TestOverviewAssemblesSections(t *testing.T) {
	news := &stubNews{items: []NewsItem{{ID: 1, Title: "Semana de calouros"}}}
	events := &stubEvents{events: []Event{{ID: 7, Title: "Colação"}}}
	chs := &stubChannels{summaries: []channels.Summary{{Channel: channels.Channel{ID: 3, Name: "Física II"}, UnreadCount: 2}}}
	svc := NewService(news, events, chs)

	day := time.Date(2026, time.March, 14, 15, 30, 0, 0, time.Local)
	overview, err := svc.Overview(context.Background(), 42, day)
	require.NoError(t, err)

	require.Equal(t, int64(42), chs.userID)
	require.Equal(t, NewsLimit, news.limit)
	require.Len(t, overview.Channels, 1)
	require.Len(t, overview.News, 1)
	require.Len(t, overview.Events, 1)

	wantDay := time.Date(2026, time.March, 14, 0, 0, 0, 0, time.Local)
	require.Equal(t, wantDay, overview.SelectedDay)
	require.Equal(t, wantDay, events.day)
}

func TestOverviewZeroDayDefaultsToToday(t *testing.T) {
	svc := NewService(&stubNews{}, &stubEvents{}, &stubChannels{})

	overview, err := svc.Overview(context.Background(), 1, time.Time{})
	require.NoError(t, err)

	year, month, day := time.Now().Date()
	require.Equal(t, time.Date(year, month, day, 0, 0, 0, 0, time.Local), overview.SelectedDay)
}

func TestOverviewPropagatesSectionError(t *testing.T) {
	boom := errors.New("news unavailable")
	svc := NewService(&stubNews{err: boom}, &stubEvents{}, &stubChannels{})

	_, err := svc.Overview(context.Background(), 1, time.Now())
	require.ErrorIs(t, err, boom)
}
