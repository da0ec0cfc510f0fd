package models

import (
	"time"

	"github.com/google/uuid"
)

// Course - курс маркетплейса (в этом сервисе только для чтения).
type Course struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Title        string     `json:"title" db:"title"`
	Price        float64    `json:"price" db:"price"`
	InstructorID *uuid.UUID `json:"instructorId,omitempty" db:"instructor_id"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}

// User - покупатель курса.
type User struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Name  string    `json:"name" db:"name"`
	Email string    `json:"email" db:"email"`
}

// Enrollment даёт пользователю доступ к курсу.
type Enrollment struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"userId" db:"user_id"`
	CourseID    uuid.UUID  `json:"courseId" db:"course_id"`
	EnrolledAt  time.Time  `json:"enrolledAt" db:"enrolled_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}
