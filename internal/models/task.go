package models

import "time"

// TaskStatus enumerates the lifecycle of a DeliveryTask. spec.md's §3 data
// model is authoritative here: unlike the original_source snapshot of
// packages/core/enums.py (which lacks an EXPIRED value), EXPIRED is a first
// class status — a task whose offer TTL lapsed before any driver response.
type TaskStatus string

const (
	TaskUnassigned TaskStatus = "UNASSIGNED"
	TaskOffered    TaskStatus = "OFFERED"
	TaskAccepted   TaskStatus = "ACCEPTED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
	TaskExpired    TaskStatus = "EXPIRED"
)

// RouteKind distinguishes a forward delivery leg from a merchant return leg.
type RouteKind string

const (
	RouteDelivery RouteKind = "DELIVERY"
	RouteReturn   RouteKind = "RETURN"
)

// RouteInfo is the task's route_json payload.
type RouteInfo struct {
	Type      RouteKind `json:"type"`
	ToStoreID string    `json:"to_store_id,omitempty"`
}

// DeliveryTask represents one leg of fulfillment — a forward delivery or a
// merchant return — assigned to a single driver at a time.
type DeliveryTask struct {
	ID                string
	OrderID           string
	DriverID          string
	Status            TaskStatus
	OfferedToDriverID string
	OfferExpiresAt    *time.Time
	Route             RouteInfo
	CreatedAt         time.Time
}
