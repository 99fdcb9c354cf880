package dataset

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fedutinova/minedash/internal/common"
	"github.com/fedutinova/minedash/internal/models"
)

// Insights keeps submitted notes in memory, in submission order.
type Insights struct {
	mu    sync.RWMutex
	items []models.Insight
	now   func() time.Time
}

func NewInsights() *Insights {
	return &Insights{now: time.Now}
}

func (in *Insights) Add(username string, kind models.InsightKind, text string) (models.Insight, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Insight{}, common.ValidationError{Field: "insight", Message: "insight text is required"}
	}
	item := models.Insight{
		ID:        uuid.New(),
		Username:  username,
		Text:      text,
		Kind:      kind,
		CreatedAt: in.now().UTC(),
	}
	in.mu.Lock()
	in.items = append(in.items, item)
	in.mu.Unlock()
	return item, nil
}

func (in *Insights) List(kind models.InsightKind) []models.Insight {
	in.mu.RLock()
	defer in.mu.RUnlock()
	var out []models.Insight
	for _, it := range in.items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

func (in *Insights) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.items)
}
