package models

import "fmt"

// ResourceStatus is the derived availability state of a ledger row.
type ResourceStatus string

const (
	StatusAvailable  ResourceStatus = "Available"
	StatusInProgress ResourceStatus = "In Progress"
	StatusUrgent     ResourceStatus = "Urgent"
	StatusUnknown    ResourceStatus = "Unknown"
)

// ResourcePriority is the derived urgency of restocking a ledger row.
type ResourcePriority string

const (
	ResourcePriorityUrgent ResourcePriority = "urgent"
	ResourcePriorityHigh   ResourcePriority = "high"
	ResourcePriorityMedium ResourcePriority = "medium"
	ResourcePriorityLow    ResourcePriority = "low"
)

// ResourceItem is one resource-type-per-hospital ledger row. Available and
// Capacity are kept as integers; the "available/capacity" display string is
// rendered only at the presentation boundary.
type ResourceItem struct {
	ID          string           `json:"id" db:"id"`
	Hospital    string           `json:"hospital" db:"hospital"`
	Resource    string           `json:"resource" db:"resource"`
	Status      ResourceStatus   `json:"status" db:"status"`
	Progress    int              `json:"progress" db:"progress"`
	Available   int              `json:"available" db:"available"`
	Capacity    int              `json:"capacity" db:"capacity"`
	CreatedDate string           `json:"created_date" db:"created_date"`
	DueDate     string           `json:"due_date" db:"due_date"`
	Priority    ResourcePriority `json:"priority" db:"priority"`
}

// Total renders the denormalized "available/capacity" display string.
func (r *ResourceItem) Total() string {
	return fmt.Sprintf("%d/%d", r.Available, r.Capacity)
}

// ResourceUpdate is an administrative add-or-update request against the
// ledger. Quantity is a delta for existing rows and the initial stock for
// new rows.
type ResourceUpdate struct {
	Hospital     string `json:"hospital"`
	ResourceType string `json:"resource_type"`
	Quantity     int    `json:"quantity"`
	Note         string `json:"note,omitempty"`
}
