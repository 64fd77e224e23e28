package id

import "github.com/google/uuid"

// Generator yields opaque unique identifiers for session tokens and
// checkout transactions.
type Generator struct{}

func NewGenerator() Generator { return Generator{} }

func (Generator) NewID() string { return uuid.NewString() }
