package repositories

import (
	"context"

	"github.com/soulsight/soulsight_backend/internal/core/domain"
)

// SessionArchiveRepositoryFacade persists sessions once they reach a terminal
// state. Live session state is owned by the in-memory registry; the archive is
// the durable record that remains after the registry drops the entry.
type SessionArchiveRepositoryFacade interface {
	// ArchiveSession writes the terminal snapshot of a session.
	ArchiveSession(ctx context.Context, session domain.ReadingSession) error

	// FindArchivedByID retrieves an archived session, or apperrors.ErrNotFound.
	FindArchivedByID(ctx context.Context, sessionID string) (*domain.ReadingSession, error)
}
