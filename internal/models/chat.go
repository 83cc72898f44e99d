package models

import (
	"time"

	"github.com/google/uuid"
)

type CallStatus string

const (
	CallStatusRequested CallStatus = "requested"
	CallStatusAccepted  CallStatus = "accepted"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusEnded     CallStatus = "ended"
)

// Terminal reports whether no further transition is possible.
func (s CallStatus) Terminal() bool {
	return s == CallStatusRejected || s == CallStatusEnded
}

// ChatThread is a conversation between an employer and a worker, optionally about one job.
type ChatThread struct {
	BaseModel
	EmployerID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_thread;not null" json:"employer_id"`
	WorkerID   uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_thread;index;not null" json:"worker_id"`
	JobID      *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_thread" json:"job_id"`
}

// Participant reports whether userID belongs to the thread.
func (t *ChatThread) Participant(userID uuid.UUID) bool {
	return t.EmployerID == userID || t.WorkerID == userID
}

// Counterpart returns the other participant.
func (t *ChatThread) Counterpart(userID uuid.UUID) uuid.UUID {
	if t.EmployerID == userID {
		return t.WorkerID
	}
	return t.EmployerID
}

type ChatMessage struct {
	BaseModel
	ThreadID uuid.UUID `gorm:"type:uuid;index;not null" json:"thread_id"`
	SenderID uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Message  string    `gorm:"not null" json:"message"`
	IsRead   bool      `gorm:"default:false" json:"is_read"`
}

// CallSession is a voice/video call negotiated inside a chat thread.
type CallSession struct {
	BaseModel
	ThreadID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"thread_id"`
	RequesterID uuid.UUID  `gorm:"type:uuid;not null" json:"requester_id"`
	ReceiverID  uuid.UUID  `gorm:"type:uuid;not null" json:"receiver_id"`
	Status      CallStatus `gorm:"type:varchar(20);index;default:requested" json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	Notes       string     `json:"notes"`
}
