// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     version
// Description: Central version information
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// App is the application version
const App = "0.3.0"

// Protocol is the streaming protocol revision spoken to the scoring backend
const Protocol = "1"

// Set at build time via -ldflags "-X github.com/msto63/hatsuon/pkg/core/version.Commit=..."
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns a one-line version description
func String() string {
	return fmt.Sprintf("hatsuon %s (protocol %s, commit %s, built %s, %s/%s)",
		App, Protocol, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}
