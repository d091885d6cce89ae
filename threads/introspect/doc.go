// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*
Package introspect exposes a thread runtime over HTTP for debugging.

	GET  /test/ping                  pong
	GET  /test/internalState         runtime description
	GET  /threads                    live threads ordered by id
	POST /threads/{threadid}/interrupt
	GET  /groups                     thread group tree
*/
package introspect
