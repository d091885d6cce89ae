// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
	"go.threadkit.io/threads/appctx"
)

func accessLogDecorator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("introspect: -> %s %s %v", r.Method, r.URL, r.Header)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := 200
		if ww.Status() != 0 {
			status = ww.Status()
		}

		if status/100 == 5 {
			log.Errorf("introspect: <- %s %d %v", r.URL, status, w.Header())
		} else {
			log.Debugf("introspect: <- %s %d %v", r.URL, status, w.Header())
		}
	})
}

// appCtxMiddleware makes appCtx available to handlers through appctx.FromRequest.
func appCtxMiddleware(appCtx appctx.ApplicationContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, appctx.RequestWithAppCtx(r, appCtx))
		})
	}
}
