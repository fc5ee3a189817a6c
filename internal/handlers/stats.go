package handlers

import (
	"net/http"
	"strconv"
	"time"
)

const recentPostsLimit = 5

// PostPreview represents a preview of a recent post.
type PostPreview struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
	Age        string `json:"age"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers    int64         `json:"total_users"`
	TotalPosts    int64         `json:"total_posts"`
	TotalEvents   int64         `json:"total_events"`
	TotalMessages int64         `json:"total_messages"`
	LastActivity  string        `json:"last_activity"`
	RecentPosts   []PostPreview `json:"recent_posts"`
}

// Stats returns platform statistics for the landing page.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.store.CountUsers(ctx)
	if err != nil {
		h.ServerError(w, r, err, "failed to count users")
		return
	}

	totalPosts, err := h.store.CountPosts(ctx)
	if err != nil {
		h.ServerError(w, r, err, "failed to count posts")
		return
	}

	totalEvents, err := h.store.CountEvents(ctx)
	if err != nil {
		h.ServerError(w, r, err, "failed to count events")
		return
	}

	totalMessages, err := h.store.CountMessages(ctx)
	if err != nil {
		h.ServerError(w, r, err, "failed to count messages")
		return
	}

	posts, err := h.store.ListPosts(ctx, nil, recentPostsLimit)
	if err != nil {
		// Non-fatal, continue with no previews
		posts = nil
	}

	lastActivity := "no activity yet"
	if len(posts) > 0 {
		lastActivity = formatTimeAgo(posts[0].CreatedAt)
	}

	recent := make([]PostPreview, 0, len(posts))
	for _, p := range posts {
		authorName := "Unknown User"
		if p.Author != nil {
			authorName = p.Author.Name
		}
		title := p.Title
		if tooLong(title, 80) {
			title = truncate(title, 77) + "..."
		}
		recent = append(recent, PostPreview{
			ID:         p.ID.String(),
			Title:      title,
			AuthorName: authorName,
			Age:        formatTimeAgo(p.CreatedAt),
		})
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    totalUsers,
		TotalPosts:    totalPosts,
		TotalEvents:   totalEvents,
		TotalMessages: totalMessages,
		LastActivity:  lastActivity,
		RecentPosts:   recent,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return strconv.Itoa(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return strconv.Itoa(days) + " days ago"
	}
}
