package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Event() EventRepository
	Status() StatusRepository
	Pattern() PatternRepository

	Close() error
}
