// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*

threadkit emits the following sources of logging:

1. Internal logs: lifecycle transitions of threads and groups, logged at debug level
2. Uncaught failures: failures that reached the runtime default handler, logged at warn level
3. Introspection access logs: requests served by the introspection router

All of them go through logrus and share the InternalFormatter, so a single
SetOutput call redirects everything including the standard library logger.

*/
package logging
