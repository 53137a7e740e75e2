package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	"github.com/opsdesk/opsdesk/pkg/response"
)

// ActivityHandler exposes the cross-entity activity feed.
type ActivityHandler struct {
	history *services.HistoryService
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(db *gorm.DB) (*ActivityHandler, error) {
	history, err := services.NewHistoryService(db)
	if err != nil {
		return nil, err
	}
	return &ActivityHandler{history: history}, nil
}

// activityView decorates a history event with display fields.
type activityView struct {
	models.HistoryEvent
	ActionLabel string           `json:"action_label"`
	KindLabel   string           `json:"kind_label"`
	URL         string           `json:"url,omitempty"`
	Diff        models.ChangeSet `json:"diff"`
}

func presentHistory(events []models.HistoryEvent) []activityView {
	views := make([]activityView, 0, len(events))
	for _, event := range events {
		view := activityView{
			HistoryEvent: event,
			ActionLabel:  services.ActionLabel(event.Action),
			KindLabel:    models.KindLabel(event.EntityKindValue),
			Diff:         event.DecodeChanges(),
		}
		if url, ok := models.DeepLink(event.EntityKindValue, event.EntityIDValue); ok {
			view.URL = url
		}
		views = append(views, view)
	}
	return views
}

// List returns the paginated activity feed. Notification bookkeeping is
// excluded so the feed shows staff-visible work only.
func (h *ActivityHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 25)

	filter := services.ActivityFilter{
		Kind:        models.Kind(strings.TrimSpace(c.Query("kind"))),
		ExcludeKind: models.KindNotification,
		Action:      strings.TrimSpace(c.Query("action")),
		Search:      c.Query("q"),
	}

	events, total, err := h.history.ListActivity(requestContext(c), services.ActivityListOptions{
		Page:     page,
		PageSize: perPage,
		Filter:   filter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, presentHistory(events), listMeta(page, perPage, total))
}

// EntityHistory returns the audit trail for any (kind, id) pair. Unknown
// kinds are readable and simply yield whatever rows exist for them.
func (h *ActivityHandler) EntityHistory(c *gin.Context) {
	kind := models.Kind(strings.TrimSpace(c.Param("kind")))
	id := strings.TrimSpace(c.Param("id"))

	events, err := h.history.ListForEntity(requestContext(c), kind, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, presentHistory(events))
}

// Actions returns the distinct action values for feed filter dropdowns.
func (h *ActivityHandler) Actions(c *gin.Context) {
	actions, err := h.history.DistinctActions(requestContext(c), models.KindNotification)
	if err != nil {
		response.Error(c, err)
		return
	}

	type actionView struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	views := make([]actionView, 0, len(actions))
	for _, action := range actions {
		views = append(views, actionView{Value: action, Label: services.ActionLabel(action)})
	}

	response.Success(c, http.StatusOK, views)
}
