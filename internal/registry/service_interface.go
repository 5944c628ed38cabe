package registry

// Service is the interface for every lifecycle-managed component of the
// bridge (ingestion, HTTP surface, stats).
type Service interface {
	Start() error
	Stop() error
}
