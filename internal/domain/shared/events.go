// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// User events
	EventUserRegistered EventType = "user.registered"

	// Course events
	EventCourseCreated EventType = "course.created"
	EventCourseDeleted EventType = "course.deleted"

	// Enrollment events
	EventEnrollmentCreated EventType = "enrollment.created"
	EventModuleCompleted   EventType = "enrollment.module_completed"
	EventCourseCompleted   EventType = "enrollment.course_completed"

	// System events
	EventAnalyticsSnapshotTaken EventType = "system.analytics_snapshot"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted after signup.
type UserRegisteredEvent struct {
	BaseEvent
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email": e.Email,
		"role":  e.Role,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, email, role string, at time.Time) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, userID, at),
		Email:     email,
		Role:      role,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseChangedEvent is emitted when a course is created or deleted.
type CourseChangedEvent struct {
	BaseEvent
	ActorID string `json:"actor_id"`
	Title   string `json:"title"`
}

// Payload implements Event interface.
func (e CourseChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"actor_id": e.ActorID,
		"title":    e.Title,
	}
}

// NewCourseChangedEvent creates a course.created or course.deleted event.
func NewCourseChangedEvent(eventType EventType, courseID, actorID, title string, at time.Time) CourseChangedEvent {
	return CourseChangedEvent{
		BaseEvent: NewBaseEvent(eventType, courseID, at),
		ActorID:   actorID,
		Title:     title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentEvent describes a change to one (user, course) enrollment.
// The aggregate id is the enrollment key.
type EnrollmentEvent struct {
	BaseEvent
	UserID   string  `json:"user_id"`
	CourseID string  `json:"course_id"`
	ModuleID string  `json:"module_id,omitempty"`
	Progress float64 `json:"progress"`
}

// Payload implements Event interface.
func (e EnrollmentEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
		"progress":  e.Progress,
	}
	if e.ModuleID != "" {
		p["module_id"] = e.ModuleID
	}
	return p
}

// NewEnrollmentEvent creates an enrollment event of the given type.
func NewEnrollmentEvent(eventType EventType, enrollmentID, userID, courseID, moduleID string, progress float64, at time.Time) EnrollmentEvent {
	return EnrollmentEvent{
		BaseEvent: NewBaseEvent(eventType, enrollmentID, at),
		UserID:    userID,
		CourseID:  courseID,
		ModuleID:  moduleID,
		Progress:  progress,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotTakenEvent is emitted after the daily analytics snapshot is stored.
type SnapshotTakenEvent struct {
	BaseEvent
	TotalEnrollments int `json:"total_enrollments"`
}

// Payload implements Event interface.
func (e SnapshotTakenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":              e.AggregateId,
		"total_enrollments": e.TotalEnrollments,
	}
}

// NewSnapshotTakenEvent creates a snapshot event keyed by the snapshot date.
func NewSnapshotTakenEvent(date string, totalEnrollments int, at time.Time) SnapshotTakenEvent {
	return SnapshotTakenEvent{
		BaseEvent:        NewBaseEvent(EventAnalyticsSnapshotTaken, date, at),
		TotalEnrollments: totalEnrollments,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NoopPublisher drops every event. Used when no bus is configured.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
