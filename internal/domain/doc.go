// Package domain defines the core domain types and interfaces.
//
// Files are grouped by concept (errors.go, connection.go, message.go, stats.go)
// and hold contracts only; implementations live in the packages that own them.
package domain
