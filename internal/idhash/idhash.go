// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package idhash derives the stable 32-bit entity ids used throughout the
// wire protocol from their original string names.
package idhash

import "hash/fnv"

// ID is a 32-bit FNV-1a hash of an entity's original UTF-8 name. Ids are
// global and stable across runs; a collision between two distinct names is
// a configuration error, not something this package can detect.
type ID uint32

// Of hashes name into its canonical ID.
func Of(name string) ID {
	h := fnv.New32a()
	h.Write([]byte(name))
	return ID(h.Sum32())
}

// RootID is the id of the scene's single implicit root node.
var RootID = Of("__root")
