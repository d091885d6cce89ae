// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.threadkit.io/threads/appctx"
	"go.threadkit.io/threads/core"
	"go.threadkit.io/threads/core/statejson"
)

// ThreadRuntime is the view of a thread runtime served by the router.
type ThreadRuntime interface {
	AppCtx() appctx.ApplicationContext
	Describe() *statejson.RuntimeDescription
	AllThreads() []*core.Thread
	ThreadByID(id int64) (*core.Thread, bool)
}

// NewHTTPRouter returns a chi router exposing the state of rt.
func NewHTTPRouter(rt ThreadRuntime) *chi.Mux {
	r := chi.NewRouter()
	r.Use(accessLogDecorator)
	r.Use(appCtxMiddleware(rt.AppCtx()))

	r.Get("/test/ping", func(w http.ResponseWriter, r *http.Request) { PingHandler(w, r) })
	r.Get("/test/internalState", func(w http.ResponseWriter, r *http.Request) { InternalStateHandler(w, r, rt) })
	r.Get("/threads", func(w http.ResponseWriter, r *http.Request) { ThreadsHandler(w, r, rt) })
	r.Post("/threads/{threadid}/interrupt", func(w http.ResponseWriter, r *http.Request) { InterruptHandler(w, r, rt) })
	r.Get("/groups", func(w http.ResponseWriter, r *http.Request) { GroupsHandler(w, r, rt) })
	return r
}
