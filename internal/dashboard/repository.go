package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewsRepository reads the novidades table.
type NewsRepository struct {
	pool *pgxpool.Pool
}

func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

var _ NewsPort = (*NewsRepository)(nil)

func (r *NewsRepository) Latest(ctx context.Context, limit int) ([]NewsItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, avatar, avatar_color, source, title, body, published_at
		FROM news
		ORDER BY published_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list news: %w", err)
	}
	defer rows.Close()

	var items []NewsItem
	for rows.Next() {
		var item NewsItem
		if err := rows.Scan(&item.ID, &item.Avatar, &item.AvatarColor, &item.Source, &item.Title, &item.Body, &item.PublishedAt); err != nil {
			return nil, fmt.Errorf("dashboard: scan news: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// EventsRepository reads the events table.
type EventsRepository struct {
	pool *pgxpool.Pool
}

func NewEventsRepository(pool *pgxpool.Pool) *EventsRepository {
	return &EventsRepository{pool: pool}
}

var _ EventsPort = (*EventsRepository)(nil)

func (r *EventsRepository) OnDay(ctx context.Context, day time.Time) ([]Event, error) {
	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, color, starts_at, ends_at
		FROM events
		WHERE starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at`, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Color, &ev.StartsAt, &ev.EndsAt); err != nil {
			return nil, fmt.Errorf("dashboard: scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
