// Package app composes the marketplace services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Profiles and identity verification
//	│   ├── project/        # Projects and milestones
//	│   ├── escrow/         # Escrow payments and wallets
//	│   ├── verification/   # Work verification records and evidence
//	│   ├── stats/          # Freelancer statistics and work records
//	│   └── crosschain/     # Cross-chain operations and entity links
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, ProjectStore, etc.)
//	│   ├── memory/         # In-memory implementation for tests and dev
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic, one package per domain
//	├── chain/              # Value transfer engine abstraction
//	├── httpapi/            # HTTP read API and routing
//	├── events/             # Domain event emission
//	├── system/             # Service lifecycle management
//	├── metrics/            # Prometheus collectors
//	└── config/             # Environment configuration
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services from internal/app/services/ with their dependencies
//   - Defining the storage interfaces services depend on
//   - Providing domain models shared across services
//   - Exposing the HTTP read API for external access
//
// Business rules live in the service packages, not here.
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "reputation"):
//
//  1. Create domain models in internal/app/domain/reputation/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/reputation/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add read endpoints in internal/app/httpapi/handler.go
package app
