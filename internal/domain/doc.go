// Package domain defines the karma engine's types and the interfaces between
// transports, processors and stores. It holds contracts only; implementations
// live in internal/app and internal/adapter.
package domain
