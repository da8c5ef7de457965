// Package instance names the running process for log correlation.
package instance

import (
	"os"

	"github.com/angelmondragon/menuboard-backend/pkg/env"
)

// GetID prefers an explicit MENUBOARD_WORKER_ID, then the Cloud Run revision
// or dyno name, then the hostname.
func GetID() string {
	if id := env.First("MENUBOARD_WORKER_ID", "K_REVISION", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
