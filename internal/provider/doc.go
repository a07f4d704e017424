// Package provider defines the capability model shared by every AI backend:
// request kinds, requests and results, the Executor contract, provider
// descriptors and the startup registry. It also loads the YAML provider
// catalog and wraps executors with per-provider rate limits.
package provider

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks github.com/agbru/lookforge/internal/provider Executor
