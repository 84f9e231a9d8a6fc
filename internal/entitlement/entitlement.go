// Package entitlement decides whether a user may open a given assistant
// and owns the admin-side grant/revoke workflow behind that decision.
package entitlement

import (
	"time"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

// HasAccess reports whether the profile may open the assistant. Unknown and
// denied are the same outcome: a nil profile, a nil or empty list, or a
// missing entry all answer false. It never errors.
func HasAccess(profile *models.Profile, assistantType string) bool {
	if profile == nil || assistantType == "" {
		return false
	}
	for _, allowed := range profile.AllowedAssistants {
		if allowed == assistantType {
			return true
		}
	}
	return false
}

// HasPlan is the plan-list form of the same check: an active grant whose
// plan name matches the assistant type.
func HasPlan(plans []models.UserPlan, assistantType string, now time.Time) bool {
	if assistantType == "" {
		return false
	}
	for _, plan := range plans {
		if plan.PlanName == assistantType && plan.Active(now) {
			return true
		}
	}
	return false
}
