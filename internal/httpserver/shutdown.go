package httpserver

import "time"

// ShutdownTimeout bounds how long in-flight requests, such as segment downloads, may
// run after shutdown begins.
var ShutdownTimeout = 15 * time.Second
