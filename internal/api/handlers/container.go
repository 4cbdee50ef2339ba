package handlers

import (
	"ledger-api/internal/coordinator"
	"ledger-api/internal/domain/engine"
	"ledger-api/internal/infrastructure/messaging"
	"ledger-api/internal/infrastructure/store"
)

// HandlerDependencies breaks the circular dependency between handlers and
// the components package: handlers depend on this narrow interface, the
// DI container satisfies it.
type HandlerDependencies interface {
	GetStore() store.Store
	GetCoordinator() *coordinator.Coordinator
	GetEngine() *engine.Engine
	GetEventPublisher() messaging.EventPublisher
}
