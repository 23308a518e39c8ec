// Package app composes the NovaStack backend: stores, domain services, the
// Monero wallet client and the background job scheduler.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (user, startup, investment)
//	├── storage/            # Store interfaces
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation
//	├── services/           # Business rules (users, startups, investments, payments)
//	├── httpapi/            # REST handlers, routing and the HTTP server
//	├── jobs/               # Cron scheduled wallet refresh and reconciliation
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/novastack/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► services/ ──► storage/, domain/, internal/monero
//	      │
//	      └──► httpapi/ ──► services/, internal/middleware
//
// Business rules live in services; handlers only translate HTTP requests into
// service calls and service errors into status codes.
//
// # Adding a Domain
//
//  1. Create the model in internal/app/domain/<name>/
//  2. Add a store interface to internal/app/storage/interfaces.go
//  3. Implement it in storage/memory and storage/postgres, with a migration
//  4. Create the service in internal/app/services/<name>/
//  5. Wire it in application.go and expose it from httpapi
package app
