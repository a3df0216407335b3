package models

import (
	"strings"

	"github.com/google/uuid"
)

// newID mirrors the original system's f"{prefix}_{uuid4().hex}" id shape:
// a short type tag plus a dash-free UUID, so ids stay greppable by kind
// without a lookup.
func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func NewOrderID() string    { return newID("ord") }
func NewTaskID() string     { return newID("task") }
func NewEventID() string    { return newID("evt") }
func NewOfferLogID() string { return newID("offer") }
func NewDriverID() string   { return newID("drv") }
