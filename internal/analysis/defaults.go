package analysis

// DefaultRegistry returns a registry holding every published analysis in
// presentation order
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		NewOverviewAnalysis(),
		NewPatentsPerYearAnalysis(),
		NewGrantLagAnalysis(),
		NewCPCSectionsAnalysis(),
		NewCPCConcentrationAnalysis(),
		NewTopAssigneesAnalysis(),
		NewAssigneeConcentrationAnalysis(),
		NewAssigneeTypesAnalysis(),
		NewTeamSizeAnalysis(),
		NewInventorGenderAnalysis(),
		NewGeographyAnalysis(),
		NewCitationsAnalysis(),
		NewCitationImpactAnalysis(),
		NewCitationInequalityAnalysis(),
		NewSelfCitationAnalysis(),
		NewGovernmentInterestAnalysis(),
		NewWIPOFieldsAnalysis(),
		NewOrgDiversificationAnalysis(),
		NewTechnologySCurvesAnalysis(),
		NewTeamSizeRegressionAnalysis(),
		NewSectionEntryEventStudyAnalysis(),
	)
}
