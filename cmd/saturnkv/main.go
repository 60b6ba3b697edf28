package main

import "github.com/saturnkv/saturnkv/engine"

// DB is the store surface process-level tooling would dispatch
// against. Argument parsing and command dispatch are out of scope.
type DB interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Close() error
}

var _ DB = (*engine.Engine)(nil)

func main() {
}
