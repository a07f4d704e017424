// Package store persists generated asset records and operator overrides of
// the provider catalog in MongoDB.
package store
