package debug

import "os"

// DEBUG turns on chunk dumps, per-instruction traces and internal
// assertions.
var DEBUG = os.Getenv("FLINT_DEBUG") != ""
