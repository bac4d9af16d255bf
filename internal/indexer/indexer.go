// Package indexer keeps the global class index filled: it scans the project
// for PHP files, records where each class is declared and persists those
// locations in SQLite.
package indexer

// Recorder receives class locations. *resolver.ClassIndex implements it.
type Recorder interface {
	RecordClass(fqn, fileID string)
	ForgetFile(fileID string)
}
