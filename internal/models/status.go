package models

// StatusSet groups statuses into a named, switchable collection. Modules
// point at a set through StatusUsage, so swapping a module's statuses never
// touches application code.
type StatusSet struct {
	BaseModel

	Key     string `gorm:"uniqueIndex;not null" json:"key"`
	Name    string `gorm:"not null" json:"name"`
	Enabled bool   `gorm:"default:true" json:"enabled"`

	Statuses []Status `gorm:"foreignKey:StatusSetID" json:"statuses,omitempty"`
}

// Status belongs to exactly one StatusSet. At most one status per set may
// carry the default flag.
type Status struct {
	BaseModel

	StatusSetID string     `gorm:"type:uuid;not null;index;uniqueIndex:idx_statuses_set_key" json:"status_set_id"`
	StatusSet   *StatusSet `gorm:"foreignKey:StatusSetID" json:"-"`

	Key       string `gorm:"not null;uniqueIndex:idx_statuses_set_key" json:"key"`
	Label     string `gorm:"not null" json:"label"`
	SortOrder int    `gorm:"default:0" json:"sort_order"`
	IsDone    bool   `gorm:"default:false" json:"is_done"`
	IsDefault bool   `gorm:"default:false" json:"is_default"`
}

// StatusUsage maps a module key (signals, tasks, ...) to at most one active
// StatusSet. One row per module.
type StatusUsage struct {
	BaseModel

	ModuleKey   string     `gorm:"uniqueIndex;not null" json:"module_key"`
	StatusSetID *string    `gorm:"type:uuid" json:"status_set_id"`
	StatusSet   *StatusSet `gorm:"foreignKey:StatusSetID" json:"status_set,omitempty"`
	Enabled     bool       `gorm:"default:true" json:"enabled"`
}

// Module keys known to the status subsystem. Additional modules may map a
// usage row without code changes.
const (
	ModuleSignals  = "signals"
	ModuleTasks    = "tasks"
	ModuleMessages = "messages"
)
