// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package appctx

import (
	"context"
	"net/http"

	"go.threadkit.io/threads/fatalerror"

	log "github.com/sirupsen/logrus"
)

// This package contains a set of utility methods for accessing application
// context and application context data.

// A ReqCtxKey type is used as a key for storing values in the request context.
type ReqCtxKey int

// ReqCtxApplicationContextKey is used for injecting application
// context object into request context.
const ReqCtxApplicationContextKey ReqCtxKey = iota

// FromRequest retrieves application context from the request context.
func FromRequest(request *http.Request) ApplicationContext {
	return request.Context().Value(ReqCtxApplicationContextKey).(ApplicationContext)
}

// RequestWithAppCtx places application context into request context.
func RequestWithAppCtx(request *http.Request, appCtx ApplicationContext) *http.Request {
	return request.WithContext(context.WithValue(request.Context(), ReqCtxApplicationContextKey, appCtx))
}

// GetRuntimeID returns the runtime instance id, empty if not stored.
func GetRuntimeID(appCtx ApplicationContext) string {
	return appCtx.GetOrDefault(AppCtxRuntimeIDKey, "").(string)
}

// StoreDefaultUncaughtHandler stores the process-wide uncaught failure handler.
// A nil handler removes it.
func StoreDefaultUncaughtHandler(appCtx ApplicationContext, handler interface{}) {
	if handler == nil {
		appCtx.Delete(AppCtxDefaultUncaughtHandlerKey)
		return
	}
	appCtx.Store(AppCtxDefaultUncaughtHandlerKey, handler)
}

// LoadDefaultUncaughtHandler retrieves the process-wide uncaught failure handler.
func LoadDefaultUncaughtHandler(appCtx ApplicationContext) interface{} {
	v, _ := appCtx.Load(AppCtxDefaultUncaughtHandlerKey)
	return v
}

// StoreFirstFatalError stores uncaught failure type in appctx once. This error is considered to be the rootcause of failure
func StoreFirstFatalError(appCtx ApplicationContext, err fatalerror.ErrorType) {
	if existing := appCtx.StoreIfNotExists(AppCtxFirstFatalErrorKey, err); existing != nil {
		log.Debugf("Omitting fatal error %s: %s already stored", err, existing.(fatalerror.ErrorType))
		return
	}

	log.Warnf("First fatal error stored in appctx: %s", err)
}

// LoadFirstFatalError returns stored error if found
func LoadFirstFatalError(appCtx ApplicationContext) (errorType fatalerror.ErrorType, found bool) {
	v, found := appCtx.Load(AppCtxFirstFatalErrorKey)
	if !found {
		return "", false
	}
	return v.(fatalerror.ErrorType), true
}
