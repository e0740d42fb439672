package db

import (
	"inputbid-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetStore returns the transactional store
func (f *RepositoryFactory) GetStore() *Store {
	return NewStore(f.conn)
}

// GetAccessRepository returns the retailer access repository
func (f *RepositoryFactory) GetAccessRepository() *AccessRepository {
	return NewAccessRepository(f.conn)
}

// GetAllRepositories returns all repositories in a struct for easy dependency injection
func (f *RepositoryFactory) GetAllRepositories() struct {
	Store      outbound.Store
	AccessGate outbound.AccessGate
	Access     *AccessRepository
} {
	access := f.GetAccessRepository()
	return struct {
		Store      outbound.Store
		AccessGate outbound.AccessGate
		Access     *AccessRepository
	}{
		Store:      f.GetStore(),
		AccessGate: access,
		Access:     access,
	}
}
