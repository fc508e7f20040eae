// Package register registers all services
package register

import (
	// register services.
	_ "go.viam.com/safewander/services/wander/builtin"
)
