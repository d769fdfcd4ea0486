package database

// Report is a stored report job.
type Report struct {
	ID              string
	Status          string
	Cutoff          string
	ProgressCurrent int
	ProgressTotal   int
	Error           *string
	ReportJSON      *string
	CreatedAt       *string
	UpdatedAt       *string
}

// Stats summarizes the store's contents.
type Stats struct {
	Ads             int
	VOCTopics       int
	VOCVerbatims    int
	ReportsByStatus map[string]int
}
