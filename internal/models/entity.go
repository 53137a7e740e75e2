package models

import "fmt"

// Kind tags which tracked model a polymorphic reference points to.
type Kind string

// Tracked entity kinds. History, notes and notifications attach to any of
// these through a (kind, id) pair rather than a typed foreign key.
const (
	KindSignal       Kind = "signal"
	KindTask         Kind = "task"
	KindPerson       Kind = "person"
	KindNotification Kind = "notification"
)

// Entity is implemented by every model that can carry notes, history and
// notifications. The (kind, id) pair is a weak reference: deleting the
// entity does not cascade into its attached records.
type Entity interface {
	EntityKind() Kind
	EntityID() string
}

type kindInfo struct {
	label      string
	pathPrefix string
}

// kindRegistry enumerates the known kinds. Kinds absent from the registry
// are still readable (rendered as "unknown") but cannot be written to.
var kindRegistry = map[Kind]kindInfo{
	KindSignal:       {label: "Signal", pathPrefix: "/signals"},
	KindTask:         {label: "Task", pathPrefix: "/tasks"},
	KindPerson:       {label: "Person", pathPrefix: "/people"},
	KindNotification: {label: "Notification", pathPrefix: ""},
}

// KnownKind reports whether the supplied kind is registered.
func KnownKind(kind Kind) bool {
	_, ok := kindRegistry[kind]
	return ok
}

// KindLabel returns a display label for a kind, or "unknown" for
// unregistered kinds.
func KindLabel(kind Kind) string {
	if info, ok := kindRegistry[kind]; ok {
		return info.label
	}
	return "unknown"
}

// DeepLink builds the staff UI path for an entity reference. The second
// return value is false when the kind has no addressable page.
func DeepLink(kind Kind, id string) (string, bool) {
	info, ok := kindRegistry[kind]
	if !ok || info.pathPrefix == "" || id == "" {
		return "", false
	}
	return fmt.Sprintf("%s/%s/", info.pathPrefix, id), true
}
