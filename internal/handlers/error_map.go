package handlers

import (
	"net/http"

	"skillup-lms/internal/apperror"
	"skillup-lms/internal/logger"
)

// debugErrors включает детали внутренних ошибок в ответах (SERVER_DEBUG).
var debugErrors bool

// SetDebugErrors задаёт, раскрывать ли клиенту причину ошибок 500.
func SetDebugErrors(enabled bool) {
	debugErrors = enabled
}

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	status, message := resolveServiceError(log, err, internalMessage)
	writeErrorResponse(w, status, message)
}

// resolveServiceError сопоставляет вид ошибки со статусом HTTP и текстом для клиента.
// Ошибки шлюза и внутренние ошибки логируются.
func resolveServiceError(log *logger.Logger, err error, internalMessage string) (int, string) {
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		return http.StatusNotFound, err.Error()
	case apperror.Is(err, apperror.KindValidation):
		return http.StatusBadRequest, err.Error()
	case apperror.Is(err, apperror.KindConflict):
		return http.StatusConflict, err.Error()
	case apperror.Is(err, apperror.KindUpstream):
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		return http.StatusBadGateway, apperror.Message(err)
	default:
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		if debugErrors {
			return http.StatusInternalServerError, internalMessage + ": " + err.Error()
		}
		return http.StatusInternalServerError, internalMessage
	}
}
