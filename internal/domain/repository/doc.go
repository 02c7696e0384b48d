// Package repository define las entidades canónicas que el framework de
// autenticación intercambia con el adapter, y los contratos de negocio que
// el adapter expone.
//
// Estas entidades son independientes del almacenamiento subyacente
// (PocketBase, PostgreSQL, memoria). El mapeo hacia/desde el formato nativo
// del store vive en internal/adapter.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│        Framework de autenticación (host)            │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│     domain/repository (entidades + AuthAdapter)     │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│   adapter (traducción + reconciliación de schema)   │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────────┐
//	│  adapters/  │  │  adapters/  │  │  adapters/  │
//	│ pocketbase  │  │     pg      │  │   memory    │
//	└─────────────┘  └─────────────┘  └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Una lectura sin resultado retorna (nil, nil), nunca ErrNotFound
//   - Errores de dominio están en errors.go
package repository
