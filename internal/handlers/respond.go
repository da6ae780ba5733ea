package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
	"github.com/anshumansp/Business-Consultant-Agent/internal/relay"
)

// MsgProcessingFailed is the message of every pre-stream upstream failure.
const MsgProcessingFailed = "An error occurred while processing your request"

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorBody maps an error that happened before the response was committed
// onto a status and body.
func errorBody(err error) (int, models.ErrorBody) {
	var verr *relay.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, models.ErrorBody{Message: verr.Message}
	}

	var uerr *relay.UpstreamError
	if errors.As(err, &uerr) {
		return http.StatusInternalServerError, models.ErrorBody{
			Message: MsgProcessingFailed,
			Error:   uerr.Err.Error(),
		}
	}

	return http.StatusInternalServerError, models.ErrorBody{
		Message: MsgProcessingFailed,
		Error:   err.Error(),
	}
}

func handleRelayError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

func errorResponse(message string) models.ErrorBody {
	return models.ErrorBody{Message: message}
}
