package http

import "time"

const testTimeout = 5 * time.Second
