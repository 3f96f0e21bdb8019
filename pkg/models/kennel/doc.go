// Package kennel is a small data model of people and their dogs.
//
// A Person owns any number of Dogs; every stored dog points back at its
// owner. The package carries the model's migrations, its entity
// descriptions and a CUE schema for JSON documents the CLI imports.
package kennel
