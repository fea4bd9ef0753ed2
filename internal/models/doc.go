// Package models defines persisted entities and the repository interface for spotiplay.
//
// [Play] records one click of a play button: the URI, the device it went to and how it ended.
// It implements the [Model] interface providing ID generation, timestamps, validation, and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
