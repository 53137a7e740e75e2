package services

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// truncateRunes bounds a string to at most limit runes.
func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

// snapshot captures the fields relevant to a mutation before it is applied.
type snapshot map[string]any

// diffSnapshots builds the minimal change set between two snapshots taken
// over the same keys. Fields with equal values are omitted; a no-op
// mutation therefore produces an empty set.
func diffSnapshots(before, after snapshot) models.ChangeSet {
	changes := models.ChangeSet{}
	for field, oldValue := range before {
		newValue := after[field]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}
		changes[field] = models.Change(oldValue, newValue)
	}
	return changes
}

// strPtrValue converts an optional string reference into a diffable value.
func strPtrValue(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

// timeValue converts a timestamp into a stable diffable representation.
func timeValue(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339)
}

func trimmedOrNil(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
