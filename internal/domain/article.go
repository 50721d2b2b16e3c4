package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArticleStatus is the lifecycle marker stored for every article row.
type ArticleStatus string

const (
	StatusNotStarted ArticleStatus = "NOT_STARTED"
	StatusStarted    ArticleStatus = "STARTED"
	StatusDone       ArticleStatus = "DONE"
	StatusReview     ArticleStatus = "REVIEW"
	StatusError      ArticleStatus = "ERROR"
)

// ListedStatuses are the statuses shown in the article listing.
var ListedStatuses = []ArticleStatus{StatusStarted, StatusDone, StatusReview, StatusError}

// HistoryStatuses are the statuses shown in a principal's own history.
var HistoryStatuses = []ArticleStatus{StatusStarted, StatusDone}

// ParseStatus accepts a status literal in any case.
func ParseStatus(raw string) (ArticleStatus, error) {
	status := ArticleStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusNotStarted, StatusStarted, StatusDone, StatusReview, StatusError:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
}

// SortOrder orders listings by article id.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Article is a single work item as the listing sees it.
type Article struct {
	ID     int64         `json:"id"`
	Status ArticleStatus `json:"status"`
}

// Links holds the external page and the internal editor URL of an article.
type Links struct {
	External string
	Internal string
}

// HistoryEntry is one status change made by a principal.
type HistoryEntry struct {
	ArticleID int64
	Status    ArticleStatus
}

// StatusChange is the audit record emitted after a successful transition.
type StatusChange struct {
	ArticleID int64         `json:"article_id"`
	Status    ArticleStatus `json:"status"`
	Actor     Principal     `json:"actor"`
	ChangedAt time.Time     `json:"changed_at"`
}
