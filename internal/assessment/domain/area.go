// Package domain holds the assessment workflow records and pure guards.
package domain

// Governance area identifiers. Every indicator belongs to exactly one of
// the six fixed thematic areas; areas 1-3 are core, 4-6 are essential.
const (
	AreaFinancialAdministration = 1
	AreaDisasterPreparedness    = 2
	AreaSafetyPeaceAndOrder     = 3
	AreaSocialProtection        = 4
	AreaBusinessFriendliness    = 5
	AreaEnvironmentalManagement = 6
)

// GovernanceArea describes one of the six fixed thematic buckets.
type GovernanceArea struct {
	ID     int
	Name   string
	IsCore bool
}

var governanceAreas = []GovernanceArea{
	{ID: AreaFinancialAdministration, Name: "Financial Administration and Sustainability", IsCore: true},
	{ID: AreaDisasterPreparedness, Name: "Disaster Preparedness", IsCore: true},
	{ID: AreaSafetyPeaceAndOrder, Name: "Safety, Peace and Order", IsCore: true},
	{ID: AreaSocialProtection, Name: "Social Protection and Sensitivity", IsCore: false},
	{ID: AreaBusinessFriendliness, Name: "Business-Friendliness and Competitiveness", IsCore: false},
	{ID: AreaEnvironmentalManagement, Name: "Environmental Management", IsCore: false},
}

// Areas returns the six governance areas in order.
func Areas() []GovernanceArea {
	out := make([]GovernanceArea, len(governanceAreas))
	copy(out, governanceAreas)
	return out
}

// AreaByID returns a governance area definition by id.
func AreaByID(id int) (GovernanceArea, bool) {
	if !ValidAreaID(id) {
		return GovernanceArea{}, false
	}
	return governanceAreas[id-1], true
}

// ValidAreaID reports whether id names one of the six governance areas.
func ValidAreaID(id int) bool {
	return id >= AreaFinancialAdministration && id <= AreaEnvironmentalManagement
}

// CoreAreaIDs lists the three core governance areas.
func CoreAreaIDs() []int {
	return []int{AreaFinancialAdministration, AreaDisasterPreparedness, AreaSafetyPeaceAndOrder}
}

// EssentialAreaIDs lists the three essential governance areas.
func EssentialAreaIDs() []int {
	return []int{AreaSocialProtection, AreaBusinessFriendliness, AreaEnvironmentalManagement}
}
