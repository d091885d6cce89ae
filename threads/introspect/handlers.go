// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/appctx"
	"go.threadkit.io/threads/core"
	"go.threadkit.io/threads/core/statejson"
)

func PingHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("pong")); err != nil {
		log.WithError(err).Warn("Failed to write 'pong' response")
	}
}

func InternalStateHandler(w http.ResponseWriter, r *http.Request, rt ThreadRuntime) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(rt.Describe().AsJSON())
}

// ThreadsHandler lists the live threads ordered by id.
func ThreadsHandler(w http.ResponseWriter, r *http.Request, rt ThreadRuntime) {
	threads := rt.AllThreads()
	desc := make([]statejson.ThreadDescription, 0, len(threads))
	for _, t := range threads {
		desc = append(desc, t.Describe())
	}
	renderJSON(http.StatusOK, w, r, desc)
}

func GroupsHandler(w http.ResponseWriter, r *http.Request, rt ThreadRuntime) {
	renderJSON(http.StatusOK, w, r, rt.Describe().Root)
}

// InterruptHandler interrupts the live thread named by the path. The request
// is accepted once the interrupt flag is set; the thread observes it
// asynchronously.
func InterruptHandler(w http.ResponseWriter, r *http.Request, rt ThreadRuntime) {
	param := chi.URLParam(r, "threadid")
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil {
		renderError(http.StatusBadRequest, w, r, ErrorTypeInvalidThreadID, "Invalid thread id %q", param)
		return
	}

	t, found := rt.ThreadByID(id)
	if !found {
		renderError(http.StatusNotFound, w, r, ErrorTypeThreadNotFound, "No live thread with id %d", id)
		return
	}

	if err := t.Interrupt(); err != nil {
		if errors.Is(err, core.ErrAccessDenied) {
			renderError(http.StatusForbidden, w, r, ErrorTypeAccessDenied, "%s", err)
			return
		}
		renderError(http.StatusInternalServerError, w, r, ErrorTypeInternalServerError, "%s", err)
		return
	}

	log.WithFields(log.Fields{
		"runtime": appctx.GetRuntimeID(appctx.FromRequest(r)),
		"thread":  t.Name(),
	}).Info("Thread interrupted over introspection API")
	renderJSON(http.StatusAccepted, w, r, &StatusResponse{Status: "OK"})
}
