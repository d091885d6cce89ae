// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"
)

const (
	// ErrorTypeInvalidThreadID returned when the thread id path parameter is not a number
	ErrorTypeInvalidThreadID = "InvalidThreadID"
	// ErrorTypeThreadNotFound returned when no live thread has the requested id
	ErrorTypeThreadNotFound = "ThreadNotFound"
	// ErrorTypeAccessDenied returned when the permission checker rejects the operation
	ErrorTypeAccessDenied = "AccessDenied"
	// ErrorTypeInternalServerError error type for internal server error
	ErrorTypeInternalServerError = "InternalServerError"
)

// ErrorResponse is returned by the introspection server on failed requests.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

// StatusResponse is returned by the introspection server on accepted actions.
type StatusResponse struct {
	Status string `json:"status"`
}

func renderJSON(status int, w http.ResponseWriter, r *http.Request, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func renderError(status int, w http.ResponseWriter, r *http.Request, errorType string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.WithField("errorType", errorType).Warnf("introspect: %s", msg)
	renderJSON(status, w, r, &ErrorResponse{ErrorType: errorType, ErrorMessage: msg})
}
