package status

// AllChangeKinds exposes the evaluation order to external tests.
var AllChangeKinds = allChangeKinds
