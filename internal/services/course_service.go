package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/database"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"
	"skillup-lms/internal/redis"

	"github.com/google/uuid"
)

type courseCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CourseService читает курсы и пользователей, курсы кешируются в Redis.
type CourseService struct {
	db    *database.DB
	cache courseCache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCourseService создаёт сервис курсов. cache может быть nil.
func NewCourseService(db *database.DB, cache courseCache, ttl time.Duration, log *logger.Logger) *CourseService {
	return &CourseService{
		db:    db,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// GetCourse возвращает курс по ID.
func (s *CourseService) GetCourse(ctx context.Context, courseID uuid.UUID) (*models.Course, error) {
	key := redis.GenerateKey(redis.KeyPrefixCourse, courseID.String())

	if s.cache != nil {
		var cached models.Course
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithError(err).WithField("course_id", courseID).Warn("Failed to read course from cache")
		}
	}

	course := &models.Course{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, price, instructor_id, created_at FROM courses WHERE id = $1`, courseID,
	).Scan(&course.ID, &course.Title, &course.Price, &course.InstructorID, &course.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course not found", err)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, course, s.ttl); err != nil {
			s.log.WithError(err).WithField("course_id", courseID).Warn("Failed to cache course")
		}
	}

	return course, nil
}

// GetUser возвращает пользователя по ID.
func (s *CourseService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user not found", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
