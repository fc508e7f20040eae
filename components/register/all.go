// Package register registers all components
package register

import (
	// register components.
	_ "go.viam.com/safewander/components/base/fake"
	_ "go.viam.com/safewander/components/hazard/fake"
	_ "go.viam.com/safewander/components/movementsensor/fake"
)
